package strategy

import "SignalSentinel/internal/model"

// Rule maps scores to an action. Rules are evaluated in order; the first
// match wins.
type Rule struct {
	Action model.Action
	Match  func(sc Scores, th Thresholds) bool
}

// Rules is the decision table. The strong tiers ignore the opposing score,
// the weak tiers only fire when the opposing score is zero.
var Rules = []Rule{
	{model.ActionBuyStrong, func(sc Scores, th Thresholds) bool { return sc.Buy >= th.Strong }},
	{model.ActionSellStrong, func(sc Scores, th Thresholds) bool { return sc.Sell >= th.Strong }},
	{model.ActionBuy, func(sc Scores, th Thresholds) bool { return sc.Buy >= th.Weak && sc.Sell == 0 }},
	{model.ActionSell, func(sc Scores, th Thresholds) bool { return sc.Sell >= th.Weak && sc.Buy == 0 }},
}

// Decide maps scores to an action using Rules, HOLD when nothing matches.
func Decide(sc Scores, th Thresholds) model.Action {
	for _, r := range Rules {
		if r.Match(sc, th) {
			return r.Action
		}
	}
	return model.ActionHold
}

// Evaluate scores a snapshot and decides the action.
func Evaluate(s model.IndicatorSnapshot, th Thresholds) model.Decision {
	sc := Score(s, th)
	return model.Decision{
		Action:    Decide(sc, th),
		BuyScore:  sc.Buy,
		SellScore: sc.Sell,
		Signals:   sc.Signals,
	}
}

package advisory

import (
	"context"
	"fmt"
	"strings"

	"QuantLab/internal/domain/models"
	domsvc "QuantLab/internal/domain/service"
	"QuantLab/pkg/config"
)

// HTTPAdvisor asks an external advisory service for a second opinion on
// an indicator vector. The service may abstain; abstentions and
// transport failures both leave the caller voting without it.
type HTTPAdvisor struct {
	base *HTTPServiceBase
}

// NewHTTPAdvisor builds an advisor from config. A disabled advisor
// section yields a client that always abstains.
func NewHTTPAdvisor(cfg *config.Config) domsvc.Advisor {
	if !cfg.Advisor.Enabled || cfg.Advisor.URL == "" {
		return Disabled()
	}
	return &HTTPAdvisor{
		base: NewHTTPServiceBase(cfg.Advisor.URL, cfg.Advisor.Timeout, cfg.Advisor.Retries),
	}
}

type adviseRequest struct {
	Symbol     string                 `json:"symbol"`
	Indicators models.IndicatorVector `json:"indicators"`
}

type adviseResponse struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Abstain    bool    `json:"abstain"`
}

func (a *HTTPAdvisor) Advise(ctx context.Context, symbol string, vec models.IndicatorVector) (models.Decision, bool, error) {
	hold := models.Decision{Action: models.ActionHold}

	var resp adviseResponse
	err := a.base.PostJSON(ctx, "/advise", adviseRequest{Symbol: symbol, Indicators: vec}, &resp)
	if err != nil {
		return hold, false, err
	}
	if resp.Abstain || resp.Action == "" {
		return hold, false, nil
	}

	action := models.Action(strings.ToUpper(resp.Action))
	switch action {
	case models.ActionBuy, models.ActionSell, models.ActionHold:
	default:
		return hold, false, fmt.Errorf("advisor returned unknown action %q", resp.Action)
	}

	confidence := resp.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 10 {
		confidence = 10
	}
	return models.Decision{Action: action, Confidence: confidence}, true, nil
}

var _ domsvc.Advisor = (*HTTPAdvisor)(nil)

// Disabled returns an advisor that always abstains.
func Disabled() domsvc.Advisor { return disabledAdvisor{} }

type disabledAdvisor struct{}

func (disabledAdvisor) Advise(context.Context, string, models.IndicatorVector) (models.Decision, bool, error) {
	return models.Decision{Action: models.ActionHold}, false, nil
}

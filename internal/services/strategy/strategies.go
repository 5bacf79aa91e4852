package strategy

import (
	"errors"
	"fmt"

	"QuantLab/internal/domain/models"
	domsvc "QuantLab/internal/domain/service"
	"QuantLab/internal/services/fusion"
)

// Strategy names accepted by New.
const (
	NameFused       = "fused"
	NameRSIMACD     = "rsi_macd"
	NameMACrossover = "ma_crossover"
	NameCombined    = "combined"
)

var ErrUnknown = errors.New("unknown strategy")

// New returns the named strategy. The fused strategy votes through the
// given fuser; the rule strategies fire on fixed threshold conditions
// and hold whenever a required indicator is absent from the vector.
func New(name string, fuser *fusion.Fuser) (domsvc.Strategy, error) {
	switch name {
	case NameFused:
		return &fusedStrategy{fuser: fuser}, nil
	case NameRSIMACD:
		return rsiMACDStrategy{}, nil
	case NameMACrossover:
		return maCrossoverStrategy{}, nil
	case NameCombined:
		return combinedStrategy{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
}

// Names lists the registered strategy names in a stable order.
func Names() []string {
	return []string{NameFused, NameRSIMACD, NameMACrossover, NameCombined}
}

type fusedStrategy struct {
	fuser *fusion.Fuser
}

func (s *fusedStrategy) Name() string { return NameFused }

func (s *fusedStrategy) Decide(vec models.IndicatorVector) models.Decision {
	return s.fuser.Fuse(vec)
}

// rsiMACDStrategy buys oversold dips confirmed by MACD momentum and
// sells overbought peaks confirmed by a MACD cross below its signal.
type rsiMACDStrategy struct{}

func (rsiMACDStrategy) Name() string { return NameRSIMACD }

func (rsiMACDStrategy) Decide(vec models.IndicatorVector) models.Decision {
	rsi, okRSI := vec[models.IndRSI]
	macd, okMACD := vec[models.IndMACD]
	sig, okSig := vec[models.IndMACDSignal]
	if !okRSI || !okMACD || !okSig {
		return hold()
	}
	switch {
	case rsi < 30 && macd > sig:
		return models.Decision{Action: models.ActionBuy}
	case rsi > 70 && macd < sig:
		return models.Decision{Action: models.ActionSell}
	default:
		return hold()
	}
}

// maCrossoverStrategy follows the short-over-long moving average cross.
type maCrossoverStrategy struct{}

func (maCrossoverStrategy) Name() string { return NameMACrossover }

func (maCrossoverStrategy) Decide(vec models.IndicatorVector) models.Decision {
	short, okShort := vec[models.IndSMAShort]
	long, okLong := vec[models.IndSMALong]
	if !okShort || !okLong {
		return hold()
	}
	switch {
	case short > long:
		return models.Decision{Action: models.ActionBuy}
	case short < long:
		return models.Decision{Action: models.ActionSell}
	default:
		return hold()
	}
}

// combinedStrategy requires RSI, MACD and the moving averages to agree
// before acting, with looser RSI thresholds than rsiMACDStrategy.
type combinedStrategy struct{}

func (combinedStrategy) Name() string { return NameCombined }

func (combinedStrategy) Decide(vec models.IndicatorVector) models.Decision {
	rsi, okRSI := vec[models.IndRSI]
	macd, okMACD := vec[models.IndMACD]
	sig, okSig := vec[models.IndMACDSignal]
	short, okShort := vec[models.IndSMAShort]
	long, okLong := vec[models.IndSMALong]
	if !okRSI || !okMACD || !okSig || !okShort || !okLong {
		return hold()
	}
	switch {
	case rsi < 40 && macd > sig && short > long:
		return models.Decision{Action: models.ActionBuy}
	case rsi > 60 && macd < sig && short < long:
		return models.Decision{Action: models.ActionSell}
	default:
		return hold()
	}
}

func hold() models.Decision {
	return models.Decision{Action: models.ActionHold}
}

package risk

import (
	"fmt"
	"math"

	"github.com/drakos74/futures-bot/internal/api"
	"github.com/drakos74/futures-bot/internal/model"
	"github.com/rs/zerolog/log"
)

// Reason explains why the gate rejected a decision.
type Reason string

const (
	Hold             Reason = "hold signal"
	NonPositiveATR   Reason = "ATR non-positive"
	NonPositivePrice Reason = "price non-positive"
	InvalidParams    Reason = "invalid risk parameters"
	PositionOpen     Reason = "position already open"
	NoFreeEquity     Reason = "no free equity"
	LowRewardToRisk  Reason = "reward to risk below minimum"
	NonPositiveSize  Reason = "size non-positive"
	InvalidLevels    Reason = "stop or target non-positive"
)

// Rejection is the error returned for a rejected decision.
type Rejection struct {
	Coin   model.Coin
	Reason Reason
	Detail string
}

func (r Rejection) Error() string {
	if r.Detail == "" {
		return fmt.Sprintf("%s: %s: %s", api.ErrRiskRejected.Error(), r.Coin, r.Reason)
	}
	return fmt.Sprintf("%s: %s: %s (%s)", api.ErrRiskRejected.Error(), r.Coin, r.Reason, r.Detail)
}

// Unwrap allows matching the rejection against api.ErrRiskRejected.
func (r Rejection) Unwrap() error {
	return api.ErrRiskRejected
}

// Request is a decision to be checked by the gate.
type Request struct {
	Coin   model.Coin
	Signal model.Signal
	ATR    float64
	Price  float64
	Params model.RiskParameters
}

// Accept is the sized order the gate allows.
type Accept struct {
	Coin         model.Coin `json:"coin"`
	Type         model.Type `json:"type"`
	Price        float64    `json:"price"`
	Quantity     float64    `json:"quantity"`
	StopLoss     float64    `json:"stop_loss"`
	TakeProfit   float64    `json:"take_profit"`
	RewardToRisk float64    `json:"reward_to_risk"`
	Risk         float64    `json:"risk"`
}

// Gate sizes decisions against the account and enforces the stop, target and reward to risk rules.
type Gate struct {
	account *Account
}

// NewGate creates a new risk gate for the account.
func NewGate(account *Account) *Gate {
	return &Gate{account: account}
}

// Evaluate checks the request and on success reserves its risk on the account.
// The reservation must be committed or released by the caller once execution completes.
func (g *Gate) Evaluate(request Request) (Accept, error) {
	reject := func(reason Reason, detail string) (Accept, error) {
		return Accept{}, Rejection{Coin: request.Coin, Reason: reason, Detail: detail}
	}

	side := request.Signal.Type()
	if side == model.NoType {
		return reject(Hold, "")
	}
	if !(request.ATR > 0) {
		return reject(NonPositiveATR, fmt.Sprintf("%f", request.ATR))
	}
	if !(request.Price > 0) {
		return reject(NonPositivePrice, fmt.Sprintf("%f", request.Price))
	}
	params := request.Params
	if params.RiskMultipleStop <= 0 || params.RewardMultipleTarget <= 0 || params.RiskPercentage <= 0 {
		return reject(InvalidParams, fmt.Sprintf("%+v", params))
	}

	stopDistance := params.RiskMultipleStop * request.ATR
	targetDistance := params.RewardMultipleTarget * request.ATR
	sign := side.Sign()
	accept := Accept{
		Coin:       request.Coin,
		Type:       side,
		Price:      request.Price,
		StopLoss:   request.Price - sign*stopDistance,
		TakeProfit: request.Price + sign*targetDistance,
	}
	// both distances scale with the atr
	accept.RewardToRisk = params.RewardMultipleTarget / params.RiskMultipleStop
	if accept.RewardToRisk < params.MinRewardToRisk {
		return reject(LowRewardToRisk, fmt.Sprintf("%.2f < %.2f", accept.RewardToRisk, params.MinRewardToRisk))
	}
	if accept.StopLoss <= 0 || accept.TakeProfit <= 0 {
		return reject(InvalidLevels, fmt.Sprintf("stop=%f target=%f", accept.StopLoss, accept.TakeProfit))
	}

	var rejection *Rejection
	err := g.account.reserve(request.Coin, func(balance, exposure float64, open bool) (float64, error) {
		if open {
			rejection = &Rejection{Coin: request.Coin, Reason: PositionOpen}
			return 0, rejection
		}
		free := balance - exposure
		if free <= 0 {
			rejection = &Rejection{Coin: request.Coin, Reason: NoFreeEquity, Detail: fmt.Sprintf("balance=%f exposure=%f", balance, exposure)}
			return 0, rejection
		}
		risk := free * params.RiskPercentage
		size := math.Max(0, risk/request.ATR)
		if !(size > 0) {
			rejection = &Rejection{Coin: request.Coin, Reason: NonPositiveSize}
			return 0, rejection
		}
		accept.Quantity = size
		accept.Risk = risk
		return risk, nil
	})
	if err != nil {
		if rejection != nil {
			return Accept{}, *rejection
		}
		return Accept{}, err
	}

	log.Debug().
		Str("coin", string(request.Coin)).
		Str("type", side.String()).
		Float64("quantity", accept.Quantity).
		Float64("price", accept.Price).
		Float64("stop", accept.StopLoss).
		Float64("target", accept.TakeProfit).
		Float64("rr", accept.RewardToRisk).
		Msg("risk accepted")
	return accept, nil
}

package blockchain

import (
	"errors"
	"fmt"
)

const (
	DEFAULT_DIFFICULTY          = 4
	DEFAULT_TARGET_BLOCK_TIME   = 10.0
	DEFAULT_ADJUSTMENT_INTERVAL = 10
	DEFAULT_TIME_TOLERANCE      = 0.1

	MIN_DIFFICULTY = 1
	MAX_DIFFICULTY = 10
	MIN_TOLERANCE  = 0.01
	MAX_TOLERANCE  = 0.5
)

var ErrParameter = errors.New("mining parameter out of range")

type Params struct {
	Difficulty         int     `json:"difficulty"`
	TargetBlockTime    float64 `json:"target_block_time"`
	AdjustmentInterval int     `json:"adjustment_interval"`
	TimeTolerance      float64 `json:"time_tolerance"`
}

func DefaultParams() Params {
	return Params{
		Difficulty:         DEFAULT_DIFFICULTY,
		TargetBlockTime:    DEFAULT_TARGET_BLOCK_TIME,
		AdjustmentInterval: DEFAULT_ADJUSTMENT_INTERVAL,
		TimeTolerance:      DEFAULT_TIME_TOLERANCE,
	}
}

func (p Params) Validate() error {
	if p.Difficulty < MIN_DIFFICULTY || p.Difficulty > MAX_DIFFICULTY {
		return fmt.Errorf(
			"difficulty %d not in [%d, %d]: %w",
			p.Difficulty, MIN_DIFFICULTY, MAX_DIFFICULTY, ErrParameter,
		)
	}
	if p.TargetBlockTime <= 0 {
		return fmt.Errorf("target block time %v: %w", p.TargetBlockTime, ErrParameter)
	}
	if p.AdjustmentInterval <= 0 {
		return fmt.Errorf("adjustment interval %d: %w", p.AdjustmentInterval, ErrParameter)
	}
	if p.TimeTolerance < MIN_TOLERANCE || p.TimeTolerance > MAX_TOLERANCE {
		return fmt.Errorf(
			"time tolerance %v not in [%v, %v]: %w",
			p.TimeTolerance, MIN_TOLERANCE, MAX_TOLERANCE, ErrParameter,
		)
	}
	return nil
}

// ParamsUpdate carries a partial change; nil fields keep their value.
type ParamsUpdate struct {
	Difficulty         *int     `json:"difficulty,omitempty"`
	TargetBlockTime    *float64 `json:"target_block_time,omitempty"`
	AdjustmentInterval *int     `json:"adjustment_interval,omitempty"`
	TimeTolerance      *float64 `json:"time_tolerance,omitempty"`
}

func (u ParamsUpdate) Apply(p Params) Params {
	if u.Difficulty != nil {
		p.Difficulty = *u.Difficulty
	}
	if u.TargetBlockTime != nil {
		p.TargetBlockTime = *u.TargetBlockTime
	}
	if u.AdjustmentInterval != nil {
		p.AdjustmentInterval = *u.AdjustmentInterval
	}
	if u.TimeTolerance != nil {
		p.TimeTolerance = *u.TimeTolerance
	}
	return p
}

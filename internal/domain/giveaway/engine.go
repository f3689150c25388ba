// Package giveaway реализует розыгрыш: IDLE -> PREPARED -> RUNNING -> IDLE.
// Engine не потокобезопасен, им владеет горутина комнаты.
package giveaway

import (
	"fmt"
	"math/rand/v2"

	"github.com/go-playground/validator/v10"

	"github.com/qrave1/StageLive/internal/domain"
	"github.com/qrave1/StageLive/internal/domain/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Границы диапазона NUMBERS, чтобы max-min+1 не переполнял int64
const (
	MinNumber int64 = -1_000_000_000_000
	MaxNumber int64 = 1_000_000_000_000
)

type Engine struct {
	phase  models.GiveawayPhase
	config *models.GiveawayConfig
	rng    *rand.Rand
}

// NewEngine создает движок. rng == nil - случайный PCG источник.
func NewEngine(rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Engine{
		phase: models.GiveawayPhaseIdle,
		rng:   rng,
	}
}

func (e *Engine) Phase() models.GiveawayPhase {
	return e.phase
}

// Config возвращает копию подготовленного конфига или nil
func (e *Engine) Config() *models.GiveawayConfig {
	if e.config == nil {
		return nil
	}

	cfg := e.config.Clone()

	return &cfg
}

// Prepare проверяет конфиг и заменяет ранее подготовленный
func (e *Engine) Prepare(cfg models.GiveawayConfig) (models.GiveawayConfig, error) {
	if e.phase == models.GiveawayPhaseRunning {
		return models.GiveawayConfig{}, fmt.Errorf("%w: giveaway is running", domain.ErrInvalidState)
	}

	if err := Validate(cfg); err != nil {
		return models.GiveawayConfig{}, err
	}

	cfg = cfg.Clone()
	switch cfg.Mode {
	case models.GiveawayModeNumbers:
		cfg.Items = nil
	case models.GiveawayModeList:
		cfg.Min, cfg.Max = 0, 0
	}

	e.config = &cfg
	e.phase = models.GiveawayPhasePrepared

	return cfg.Clone(), nil
}

// Cancel сбрасывает подготовленный розыгрыш. false - отменять было нечего.
func (e *Engine) Cancel() bool {
	if e.phase != models.GiveawayPhasePrepared {
		return false
	}

	e.config = nil
	e.phase = models.GiveawayPhaseIdle

	return true
}

// Begin переводит PREPARED -> RUNNING и возвращает конфиг розыгрыша
func (e *Engine) Begin() (models.GiveawayConfig, error) {
	if e.phase != models.GiveawayPhasePrepared || e.config == nil {
		return models.GiveawayConfig{}, fmt.Errorf("%w: no giveaway prepared", domain.ErrInvalidState)
	}

	e.phase = models.GiveawayPhaseRunning

	return e.config.Clone(), nil
}

// Finish проводит розыгрыш и возвращает движок в IDLE
func (e *Engine) Finish() (models.GiveawayResult, error) {
	if e.phase != models.GiveawayPhaseRunning || e.config == nil {
		return models.GiveawayResult{}, fmt.Errorf("%w: giveaway is not running", domain.ErrInvalidState)
	}

	cfg := *e.config
	winners := Draw(cfg, e.rng)

	e.config = nil
	e.phase = models.GiveawayPhaseIdle

	return models.GiveawayResult{
		Mode:    cfg.Mode,
		Prize:   cfg.Prize,
		Winners: winners,
	}, nil
}

// Start - Begin и Finish одной операцией
func (e *Engine) Start() (models.GiveawayResult, error) {
	if _, err := e.Begin(); err != nil {
		return models.GiveawayResult{}, err
	}

	return e.Finish()
}

// State - снимок фазы и конфига для отката команды
type State struct {
	phase  models.GiveawayPhase
	config *models.GiveawayConfig
}

// State запоминает текущее состояние. Подготовленный конфиг не изменяется на месте,
// поэтому снимок делит его с движком.
func (e *Engine) State() State {
	return State{phase: e.phase, config: e.config}
}

func (e *Engine) Restore(s State) {
	e.phase = s.phase
	e.config = s.config
}

// Validate проверяет конфиг розыгрыша
func Validate(cfg models.GiveawayConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrValidation, err.Error())
	}

	switch cfg.Mode {
	case models.GiveawayModeNumbers:
		if cfg.Min < MinNumber || cfg.Max > MaxNumber {
			return fmt.Errorf("%w: range must be within [%d, %d]", domain.ErrValidation, MinNumber, MaxNumber)
		}

		if cfg.Min >= cfg.Max {
			return fmt.Errorf("%w: min must be less than max", domain.ErrValidation)
		}

		if !cfg.AllowRepeat && int64(cfg.Quantity) > cfg.Max-cfg.Min+1 {
			return fmt.Errorf("%w: cannot draw %d distinct numbers from [%d, %d]", domain.ErrInvalidState, cfg.Quantity, cfg.Min, cfg.Max)
		}
	case models.GiveawayModeList:
		if len(cfg.Items) == 0 {
			return fmt.Errorf("%w: items list is empty", domain.ErrValidation)
		}

		if !cfg.AllowRepeat && cfg.Quantity > len(cfg.Items) {
			return fmt.Errorf("%w: cannot draw %d distinct items from %d", domain.ErrInvalidState, cfg.Quantity, len(cfg.Items))
		}
	}

	return nil
}

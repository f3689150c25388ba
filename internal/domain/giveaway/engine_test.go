package giveaway

import (
	"math/rand/v2"
	"slices"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qrave1/StageLive/internal/domain"
	"github.com/qrave1/StageLive/internal/domain/models"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func numbers(quantity int, min, max int64) models.GiveawayConfig {
	return models.GiveawayConfig{
		Mode:     models.GiveawayModeNumbers,
		Quantity: quantity,
		Min:      min,
		Max:      max,
		Prize:    "T-shirt",
	}
}

func TestEngine_DrawThreeDistinctFromOneToTen(t *testing.T) {
	req := require.New(t)
	engine := NewEngine(seeded(1))

	_, err := engine.Prepare(numbers(3, 1, 10))
	req.NoError(err)
	req.Equal(models.GiveawayPhasePrepared, engine.Phase())

	result, err := engine.Start()
	req.NoError(err)
	req.Equal(models.GiveawayPhaseIdle, engine.Phase())
	req.Nil(engine.Config())
	req.Equal("T-shirt", result.Prize)
	req.Len(result.Winners, 3)

	seen := map[string]struct{}{}
	for _, w := range result.Winners {
		n, err := strconv.ParseInt(w.Value, 10, 64)
		req.NoError(err)
		req.GreaterOrEqual(n, int64(1))
		req.LessOrEqual(n, int64(10))
		req.Equal(n-1, w.SourceIndex)
		seen[w.Value] = struct{}{}
	}
	req.Len(seen, 3)
}

func TestEngine_Prepare_ZeroQuantityRejected(t *testing.T) {
	req := require.New(t)
	engine := NewEngine(seeded(1))

	_, err := engine.Prepare(numbers(0, 1, 10))
	req.ErrorIs(err, domain.ErrValidation)
	req.Equal(models.GiveawayPhaseIdle, engine.Phase())
	req.Nil(engine.Config())
}

func TestEngine_Prepare_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.GiveawayConfig
		err  error
	}{
		{name: "unknown mode", cfg: models.GiveawayConfig{Mode: "DICE", Quantity: 1}, err: domain.ErrValidation},
		{name: "min equals max", cfg: numbers(1, 5, 5), err: domain.ErrValidation},
		{name: "min above max", cfg: numbers(1, 9, 1), err: domain.ErrValidation},
		{name: "range too wide", cfg: numbers(1, MinNumber-1, 0), err: domain.ErrValidation},
		{name: "numbers domain too small", cfg: numbers(11, 1, 10), err: domain.ErrInvalidState},
		{
			name: "empty list",
			cfg:  models.GiveawayConfig{Mode: models.GiveawayModeList, Quantity: 1},
			err:  domain.ErrValidation,
		},
		{
			name: "blank item",
			cfg:  models.GiveawayConfig{Mode: models.GiveawayModeList, Quantity: 1, Items: []string{"a", ""}},
			err:  domain.ErrValidation,
		},
		{
			name: "list domain too small",
			cfg:  models.GiveawayConfig{Mode: models.GiveawayModeList, Quantity: 3, Items: []string{"a", "b"}},
			err:  domain.ErrInvalidState,
		},
		{
			name: "countdown too long",
			cfg:  models.GiveawayConfig{Mode: models.GiveawayModeList, Quantity: 1, Items: []string{"a"}, Countdown: 600},
			err:  domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			engine := NewEngine(seeded(1))

			_, err := engine.Prepare(tt.cfg)
			req.ErrorIs(err, tt.err)
			req.Equal(models.GiveawayPhaseIdle, engine.Phase())
		})
	}
}

func TestEngine_Prepare_ReplacesPrevious(t *testing.T) {
	req := require.New(t)
	engine := NewEngine(seeded(1))

	_, err := engine.Prepare(numbers(1, 1, 10))
	req.NoError(err)

	list := models.GiveawayConfig{Mode: models.GiveawayModeList, Quantity: 1, Items: []string{"Ann"}, Min: 4, Max: 7}
	cfg, err := engine.Prepare(list)
	req.NoError(err)
	req.Equal(models.GiveawayModeList, cfg.Mode)
	req.Zero(cfg.Min)
	req.Zero(cfg.Max)

	// Mutating the caller's slice does not leak into the engine
	list.Items[0] = "Bob"
	req.Equal([]string{"Ann"}, engine.Config().Items)
}

func TestEngine_PrepareCancel(t *testing.T) {
	req := require.New(t)
	engine := NewEngine(seeded(1))

	_, err := engine.Prepare(numbers(2, 1, 10))
	req.NoError(err)

	req.True(engine.Cancel())
	req.Equal(models.GiveawayPhaseIdle, engine.Phase())
	req.Nil(engine.Config())

	// Nothing to cancel any more
	req.False(engine.Cancel())

	_, err = engine.Start()
	req.ErrorIs(err, domain.ErrInvalidState)
}

func TestEngine_StartWithoutPrepare(t *testing.T) {
	req := require.New(t)
	engine := NewEngine(seeded(1))

	_, err := engine.Start()
	req.ErrorIs(err, domain.ErrInvalidState)

	_, err = engine.Finish()
	req.ErrorIs(err, domain.ErrInvalidState)
}

func TestEngine_BeginBlocksPrepareAndCancel(t *testing.T) {
	req := require.New(t)
	engine := NewEngine(seeded(1))

	_, err := engine.Prepare(numbers(1, 1, 10))
	req.NoError(err)

	_, err = engine.Begin()
	req.NoError(err)
	req.Equal(models.GiveawayPhaseRunning, engine.Phase())

	req.False(engine.Cancel())
	_, err = engine.Prepare(numbers(1, 1, 10))
	req.ErrorIs(err, domain.ErrInvalidState)

	result, err := engine.Finish()
	req.NoError(err)
	req.Len(result.Winners, 1)
	req.Equal(models.GiveawayPhaseIdle, engine.Phase())
}

func TestEngine_Restore_ReturnsToPrepared(t *testing.T) {
	req := require.New(t)
	engine := NewEngine(seeded(1))

	_, err := engine.Prepare(numbers(1, 1, 10))
	req.NoError(err)
	state := engine.State()

	_, err = engine.Start()
	req.NoError(err)
	req.Equal(models.GiveawayPhaseIdle, engine.Phase())

	// When the state taken before the draw is restored
	engine.Restore(state)

	// Then the prepared giveaway is back
	req.Equal(models.GiveawayPhasePrepared, engine.Phase())
	req.EqualValues(10, engine.Config().Max)
}

func TestDraw_AllowRepeat(t *testing.T) {
	req := require.New(t)
	cfg := models.GiveawayConfig{
		Mode:        models.GiveawayModeList,
		Quantity:    50,
		Items:       []string{"heads", "tails"},
		AllowRepeat: true,
	}

	// Quantity may exceed the domain when repeats are allowed
	req.NoError(Validate(cfg))

	winners := Draw(cfg, seeded(7))
	req.Len(winners, 50)

	counts := map[string]int{}
	for _, w := range winners {
		req.Contains(cfg.Items, w.Value)
		counts[w.Value]++
	}
	// 50 draws from two values cannot be all distinct
	req.Len(counts, 2)
}

func TestDraw_WholeDomainIsPermutation(t *testing.T) {
	req := require.New(t)
	cfg := models.GiveawayConfig{
		Mode:     models.GiveawayModeList,
		Quantity: 6,
		Items:    []string{"a", "b", "c", "d", "e", "f"},
	}

	winners := Draw(cfg, seeded(3))
	values := make([]string, 0, len(winners))
	for _, w := range winners {
		req.Equal(cfg.Items[w.SourceIndex], w.Value)
		values = append(values, w.Value)
	}

	slices.Sort(values)
	req.Equal(cfg.Items, values)
}

func TestDraw_HugeRangeStaysSparse(t *testing.T) {
	req := require.New(t)
	cfg := numbers(5, MinNumber, MaxNumber)

	winners := Draw(cfg, seeded(11))
	req.Len(winners, 5)

	seen := map[int64]struct{}{}
	for _, w := range winners {
		seen[w.SourceIndex] = struct{}{}
	}
	req.Len(seen, 5)
}

func TestDraw_SortDoesNotChangeSelection(t *testing.T) {
	req := require.New(t)
	cfg := numbers(8, 1, 100)
	sorted := cfg
	sorted.SortResults = true

	plain := Draw(cfg, seeded(42))
	ordered := Draw(sorted, seeded(42))

	req.ElementsMatch(plain, ordered)
	req.True(slices.IsSortedFunc(ordered, func(a, b models.Winner) int {
		return int(a.SourceIndex - b.SourceIndex)
	}))
}

func TestDraw_SortListLexicographically(t *testing.T) {
	req := require.New(t)
	cfg := models.GiveawayConfig{
		Mode:        models.GiveawayModeList,
		Quantity:    4,
		Items:       []string{"delta", "alpha", "charlie", "bravo"},
		SortResults: true,
	}

	winners := Draw(cfg, seeded(5))
	values := make([]string, 0, len(winners))
	for _, w := range winners {
		values = append(values, w.Value)
	}

	req.Equal([]string{"alpha", "bravo", "charlie", "delta"}, values)
}

func TestDraw_UniformOverSubsets(t *testing.T) {
	req := require.New(t)
	cfg := numbers(2, 1, 5)
	rng := seeded(2026)

	const trials = 20000
	counts := map[[2]int64]int{}

	for range trials {
		winners := Draw(cfg, rng)
		a, b := winners[0].SourceIndex, winners[1].SourceIndex
		req.NotEqual(a, b)
		if a > b {
			a, b = b, a
		}
		counts[[2]int64{a, b}]++
	}

	// C(5,2) = 10 subsets, each expected 2000 times
	req.Len(counts, 10)
	expected := float64(trials) / 10
	for subset, c := range counts {
		req.InDelta(expected, float64(c), expected*0.15, "subset %v", subset)
	}
}

package giveaway

import (
	"cmp"
	"math/rand/v2"
	"slices"
	"strconv"

	"github.com/qrave1/StageLive/internal/domain/models"
)

// Draw выбирает cfg.Quantity победителей. Без повторов используется частичная
// перестановка Фишера-Йетса поверх разреженной карты: O(quantity) по памяти
// независимо от размера диапазона, все k-подмножества равновероятны.
// Сортировка применяется после выбора и на него не влияет.
func Draw(cfg models.GiveawayConfig, rng *rand.Rand) []models.Winner {
	n := domainSize(cfg)
	k := int64(cfg.Quantity)

	indexes := make([]int64, 0, k)
	if cfg.AllowRepeat {
		for range k {
			indexes = append(indexes, rng.Int64N(n))
		}
	} else {
		indexes = sample(n, k, rng)
	}

	winners := make([]models.Winner, 0, len(indexes))
	for _, idx := range indexes {
		winners = append(winners, models.Winner{
			Value:       valueAt(cfg, idx),
			SourceIndex: idx,
		})
	}

	if cfg.SortResults {
		sortWinners(cfg.Mode, winners)
	}

	return winners
}

// sample возвращает k различных индексов из [0, n)
func sample(n, k int64, rng *rand.Rand) []int64 {
	swapped := make(map[int64]int64, k)
	at := func(i int64) int64 {
		if v, ok := swapped[i]; ok {
			return v
		}

		return i
	}

	out := make([]int64, 0, k)
	for i := range k {
		j := i + rng.Int64N(n-i)
		vi, vj := at(i), at(j)
		swapped[i], swapped[j] = vj, vi
		out = append(out, vj)
	}

	return out
}

func domainSize(cfg models.GiveawayConfig) int64 {
	if cfg.Mode == models.GiveawayModeList {
		return int64(len(cfg.Items))
	}

	return cfg.Max - cfg.Min + 1
}

func valueAt(cfg models.GiveawayConfig, idx int64) string {
	if cfg.Mode == models.GiveawayModeList {
		return cfg.Items[idx]
	}

	return strconv.FormatInt(cfg.Min+idx, 10)
}

func sortWinners(mode models.GiveawayMode, winners []models.Winner) {
	slices.SortStableFunc(winners, func(a, b models.Winner) int {
		if mode == models.GiveawayModeList {
			if c := cmp.Compare(a.Value, b.Value); c != 0 {
				return c
			}
		}

		return cmp.Compare(a.SourceIndex, b.SourceIndex)
	})
}

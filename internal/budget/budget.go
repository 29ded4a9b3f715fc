// Package budget переводит текстовые диапазоны бюджета в числа.
//
// Новые проекты хранят границы в projects.budget_min/budget_max, а метка
// остаётся только для отображения. Разбор метки нужен для старых строк, где
// есть лишь текст.
package budget

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// OpenEndedValue — условная верхняя граница для «3,000,000 以上» при сортировке.
const OpenEndedValue int64 = 99999999

type Bounds struct {
	Min float64
	Max float64 // +Inf, если сверху не ограничено
}

// Unbounded — [0, +Inf), так разбирается пустая или незнакомая метка.
var Unbounded = Bounds{Min: 0, Max: math.Inf(1)}

// Labels — значения выпадающего списка в форме проекта, по возрастанию.
var Labels = []string{
	"5,000 以下",
	"5,001 - 10,000",
	"10,001 - 50,000",
	"50,001 - 100,000",
	"100,001 - 300,000",
	"300,001 - 1,000,000",
	"1,000,001 - 3,000,000",
	"3,000,000 以上",
}

var table = map[string]Bounds{
	"5,000 以下":              {0, 5000},
	"5,001 - 10,000":        {5001, 10000},
	"10,001 - 50,000":       {10001, 50000},
	"50,001 - 100,000":      {50001, 100000},
	"100,001 - 300,000":     {100001, 300000},
	"300,001 - 1,000,000":   {300001, 1000000},
	"1,000,001 - 3,000,000": {1000001, 3000000},
	"3,000,000 以上":          {3000001, math.Inf(1)},
}

// compact: без запятых и пробелов, как метки пишут руками.
var compact = map[string]int64{
	"5000以下":          5000,
	"5001-10000":      10000,
	"10001-50000":     50000,
	"50001-100000":    100000,
	"100001-300000":   300000,
	"300001-1000000":  1000000,
	"1000001-3000000": 3000000,
	"3000000以上":       OpenEndedValue,
}

var digits = regexp.MustCompile(`\d+`)

// Known сообщает, есть ли метка в таблице.
func Known(label string) bool {
	_, ok := table[strings.TrimSpace(label)]
	return ok
}

// Parse возвращает границы метки; незнакомая метка даёт Unbounded, а не ошибку.
func Parse(label string) Bounds {
	if b, ok := table[strings.TrimSpace(label)]; ok {
		return b
	}
	return Unbounded
}

// Representative — одно число для сортировки и фильтров поиска:
// верхняя граница из таблицы, иначе наибольшая группа цифр в метке, иначе 0.
func Representative(label string) int64 {
	clean := strings.NewReplacer(",", "", " ", "").Replace(label)
	if clean == "" {
		return 0
	}
	if v, ok := compact[clean]; ok {
		return v
	}

	var best int64
	for _, m := range digits.FindAllString(clean, -1) {
		n, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		if n > best {
			best = n
		}
	}
	return best
}

func (b Bounds) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

func (b Bounds) Bounded() bool {
	return !math.IsInf(b.Max, 1)
}

func (b Bounds) String() string {
	if !b.Bounded() {
		return fmt.Sprintf("от %.0f", b.Min)
	}
	return fmt.Sprintf("%.0f - %.0f", b.Min, b.Max)
}

// Columns раскладывает границы по nullable-колонкам проекта: nil — нет ограничения.
func (b Bounds) Columns() (lo, hi *float64) {
	minV := b.Min
	lo = &minV
	if b.Bounded() {
		maxV := b.Max
		hi = &maxV
	}
	return lo, hi
}

// FromColumns — обратное к Columns; nil в min означает «границ не записано».
func FromColumns(lo, hi *float64) (Bounds, bool) {
	if lo == nil {
		return Bounds{}, false
	}
	b := Bounds{Min: *lo, Max: math.Inf(1)}
	if hi != nil {
		b.Max = *hi
	}
	return b, true
}

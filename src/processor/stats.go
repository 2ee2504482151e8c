package processor

import (
	"KycInsight/src/datasource/file"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// BlankStage 阶段名为空的记录归入该分组，保证各阶段计数之和等于总记录数
const BlankStage = "(blank)"

type group[K comparable] struct {
	key     K
	records []file.Record
}

// groupBy 按首次出现顺序分组，key返回false的记录不参与分组
func groupBy[K comparable](records []file.Record, key func(file.Record) (K, bool)) []group[K] {
	index := make(map[K]int)
	var groups []group[K]
	for _, r := range records {
		k, ok := key(r)
		if !ok {
			continue
		}
		i, seen := index[k]
		if !seen {
			i = len(groups)
			index[k] = i
			groups = append(groups, group[K]{key: k})
		}
		groups[i].records = append(groups[i].records, r)
	}
	return groups
}

func stageKey(r file.Record) (string, bool) {
	if r.Stage == "" {
		return BlankStage, true
	}
	return r.Stage, true
}

func attemptKey(r file.Record) (int, bool) {
	return r.AttemptNumber()
}

// valid 取出某一数值列中的非缺失值
func valid(records []file.Record, field func(file.Record) float64) []float64 {
	out := make([]float64, 0, len(records))
	for _, r := range records {
		if v := field(r); !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func failureOf(r file.Record) float64 { return r.Failure }
func timeOf(r file.Record) float64    { return r.Time }

// mean 空切片返回ok=false，调用方据此跳过空分组
func mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	return stat.Mean(values, nil), true
}

// sampleStd 样本标准差(ddof=1)，少于两个值时为0
func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Max(values)
}

// percent 计算占比，分母为0时返回0
func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// percentile 线性插值分位数，sorted必须已升序
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i >= n-1 {
		return sorted[n-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

func sortedCopy(values []float64) []float64 {
	out := append([]float64(nil), values...)
	sort.Float64s(out)
	return out
}

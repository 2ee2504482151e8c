package processor

import (
	"KycInsight/src/datasource/file"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

func rec(stage string, failure, seconds, attempt float64, errText string) file.Record {
	return file.Record{Stage: stage, Failure: failure, Time: seconds, Attempt: attempt, Error: errText}
}

func repeat(n int, r file.Record) []file.Record {
	out := make([]file.Record, n)
	for i := range out {
		out[i] = r
	}
	return out
}

func TestStageCountsOrderAndPercent(t *testing.T) {
	var records []file.Record
	records = append(records, repeat(20, rec("KYC Check", 0, 5, 1, ""))...)
	records = append(records, repeat(50, rec("Document Scan", 0, 5, 1, ""))...)
	records = append(records, repeat(30, rec("Upload Document", 0, 5, 1, ""))...)

	counts := StageCounts(records)
	require.Len(t, counts, 3)

	var got []int
	var labels []string
	sum := 0
	for _, c := range counts {
		got = append(got, c.Count)
		labels = append(labels, c.PercentLabel())
		sum += c.Count
	}
	assert.Equal(t, []int{50, 30, 20}, got)
	assert.Equal(t, []string{"50.0%", "30.0%", "20.0%"}, labels)
	assert.Equal(t, len(records), sum)
	assert.Equal(t, "Document Scan", counts[0].Label)
}

func TestStageCountsBlankAndTies(t *testing.T) {
	records := []file.Record{
		rec("B", 0, 1, 1, ""),
		rec("", 0, 1, 1, ""),
		rec("A", 0, 1, 1, ""),
		rec("A", 0, 1, 1, ""),
		rec("B", 0, 1, 1, ""),
	}
	counts := StageCounts(records)
	require.Len(t, counts, 3)
	assert.Equal(t, "B", counts[0].Label)
	assert.Equal(t, "A", counts[1].Label)
	assert.Equal(t, BlankStage, counts[2].Label)

	sum := 0
	for _, c := range counts {
		sum += c.Count
	}
	assert.Equal(t, len(records), sum)

	assert.Empty(t, StageCounts(nil))
}

func TestMissingValuesExcludedFromMean(t *testing.T) {
	records := []file.Record{
		rec("KYC Check", 0, 10, 1, ""),
		rec("KYC Check", 0, 20, 1, ""),
		rec("KYC Check", 0, nan, 1, ""),
		rec("KYC Check", 0, 30, 1, ""),
	}

	times := StageTimeStats(records, 20)
	require.Len(t, times, 1)
	assert.InDelta(t, 20.0, times[0].Mean, 1e-9)
	assert.Equal(t, 3, times[0].N)
	assert.False(t, times[0].OverTarget)

	k := ComputeKPIs(records, 20)
	assert.True(t, k.HasMeanTime)
	assert.InDelta(t, 20.0, k.MeanTime, 1e-9)
}

func TestStageFailureStats(t *testing.T) {
	records := []file.Record{
		rec("Document Scan", 0.2, 1, 1, ""),
		rec("Document Scan", 0.4, 1, 1, ""),
		rec("Document Scan", nan, 1, 1, ""),
		rec("KYC Check", 0.9, 1, 1, ""),
		rec("KYC Check", 0.1, 1, 1, ""),
		rec("Select Document Type", nan, 1, 1, ""),
	}

	stats := StageFailureStats(records)
	require.Len(t, stats, 2, "stage without valid failure values is skipped")

	assert.Equal(t, "KYC Check", stats[0].Stage)
	assert.InDelta(t, 50.0, stats[0].Mean, 1e-9)
	assert.InDelta(t, 90.0, stats[0].Max, 1e-9)

	assert.Equal(t, "Document Scan", stats[1].Stage)
	assert.InDelta(t, 30.0, stats[1].Mean, 1e-9)
	assert.InDelta(t, 40.0, stats[1].Max, 1e-9)
	assert.Equal(t, 2, stats[1].N)
}

func TestAttemptStats(t *testing.T) {
	records := []file.Record{
		rec("A", 0.5, 1, 3, ""),
		rec("A", 0.0, 1, 1, ""),
		rec("A", 0.2, 1, 1, ""),
		rec("A", 0.4, 1, 1, ""),
		rec("A", 1.0, 1, nan, ""),
	}

	counts := AttemptCounts(records)
	require.Len(t, counts, 2)
	assert.Equal(t, 1, counts[0].Attempt)
	assert.Equal(t, 3, counts[0].Count)
	assert.InDelta(t, 60.0, counts[0].Percent, 1e-9)
	assert.Equal(t, 3, counts[1].Attempt)

	stats := AttemptFailureStats(records)
	require.Len(t, stats, 2)
	assert.Equal(t, 1, stats[0].Attempt)
	assert.InDelta(t, 20.0, stats[0].Mean, 1e-9)
	assert.InDelta(t, 20.0, stats[0].Std, 1e-9)
	assert.InDelta(t, 40.0, stats[0].Max, 1e-9)

	// 单个样本的标准差为0
	assert.Equal(t, 0.0, stats[1].Std)
	assert.InDelta(t, 50.0, stats[1].Mean, 1e-9)
}

func TestTopErrorsTieBreak(t *testing.T) {
	build := func(first, second string) []file.Record {
		var records []file.Record
		records = append(records, rec("S", 0, 1, 1, first))
		records = append(records, rec("S", 0, 1, 1, "C"))
		records = append(records, rec("S", 0, 1, 1, second))
		records = append(records, repeat(4, rec("S", 0, 1, 1, first))...)
		records = append(records, repeat(4, rec("S", 0, 1, 1, second))...)
		records = append(records, repeat(2, rec("S", 0, 1, 1, "C"))...)
		records = append(records, repeat(3, rec("S", 0, 1, 1, ""))...)
		return records
	}

	top := TopErrors(build("A", "B"), 2)
	require.Len(t, top, 2)
	assert.Equal(t, "A", top[0].Error)
	assert.Equal(t, "B", top[1].Error)
	assert.Equal(t, 5, top[0].Count)

	top = TopErrors(build("B", "A"), 2)
	assert.Equal(t, "B", top[0].Error)
	assert.Equal(t, "A", top[1].Error)

	all := TopErrors(build("A", "B"), 10)
	require.Len(t, all, 3, "blank errors are not counted")
	assert.Equal(t, "C", all[2].Error)
	assert.InDelta(t, 3.0/16*100, all[2].Percent, 1e-9)
}

func TestStageFunnel(t *testing.T) {
	var records []file.Record
	records = append(records, repeat(7, rec("Document Scan", 0, 5, 1, ""))...)
	records = append(records, repeat(2, rec("Document Scan", 0.5, 5, 2, ""))...)
	records = append(records, rec("Document Scan", nan, 5, 1, ""))

	funnel := StageFunnel(records, []string{"Select Document Type", "Document Scan"})
	require.Len(t, funnel, 1, "stage without records is skipped")

	f := funnel[0]
	assert.Equal(t, "Document Scan", f.Stage)
	assert.Equal(t, 10, f.Success+f.Failure)
	assert.Equal(t, 7, f.Success)
	assert.InDelta(t, 70.0, f.SuccessRate, 1e-9)
	assert.InDelta(t, 30.0, f.FailureRate, 1e-9)
}

func TestTargetExceedance(t *testing.T) {
	records := []file.Record{
		rec("Upload Document", 0, 30, 1, ""),
		rec("Upload Document", 0, 10, 1, ""),
		rec("Upload Document", 0, nan, 1, ""),
		rec("Upload Document", 0, 50, 1, ""),
		rec("KYC Check", 0, nan, 1, ""),
	}

	stats := TargetExceedance(records, 20)
	require.Len(t, stats, 2)

	up := stats[0]
	assert.Equal(t, "Upload Document", up.Stage)
	assert.Equal(t, 4, up.Records)
	assert.Equal(t, 2, up.Exceeding)
	assert.InDelta(t, 50.0, up.ExceedRate, 1e-9)
	assert.True(t, up.HasMean)
	assert.InDelta(t, 30.0, up.MeanTime, 1e-9)
	assert.InDelta(t, 150.0, up.MeanPctOfTarget, 1e-9)

	assert.Equal(t, "KYC Check", stats[1].Stage)
	assert.False(t, stats[1].HasMean)
	assert.Equal(t, 0.0, stats[1].ExceedRate)
}

func TestHistogram(t *testing.T) {
	values := make([]float64, 0, 21)
	for i := 0; i <= 20; i++ {
		values = append(values, float64(i))
	}

	bins := Histogram(values, 20)
	require.Len(t, bins, 20)
	total := 0
	for i, b := range bins {
		total += b.Count
		if i < 19 {
			assert.Equal(t, 1, b.Count, "bin %d", i)
		}
	}
	assert.Equal(t, 2, bins[19].Count, "last bin is closed")
	assert.Equal(t, len(values), total)
	assert.Equal(t, 0.0, bins[0].Lo)
	assert.Equal(t, 20.0, bins[19].Hi)

	degenerate := Histogram([]float64{5, 5, 5}, 20)
	require.Len(t, degenerate, 20)
	assert.InDelta(t, 4.5, degenerate[0].Lo, 1e-9)
	assert.InDelta(t, 5.5, degenerate[19].Hi, 1e-9)
	total = 0
	for _, b := range degenerate {
		total += b.Count
	}
	assert.Equal(t, 3, total)

	assert.Nil(t, Histogram(nil, 20))
}

func TestStageBoxStats(t *testing.T) {
	var records []file.Record
	for i := 1; i <= 9; i++ {
		records = append(records, rec("KYC Check", 0, float64(i), 1, ""))
	}
	records = append(records, rec("KYC Check", 0, 100, 1, ""))
	records = append(records, rec("Document Scan", 0, nan, 1, ""))

	box := StageBoxStats(records)
	require.Len(t, box, 1)

	b := box[0]
	assert.Equal(t, 10, b.N)
	assert.InDelta(t, 3.25, b.Q1, 1e-9)
	assert.InDelta(t, 5.5, b.Median, 1e-9)
	assert.InDelta(t, 7.75, b.Q3, 1e-9)
	assert.Equal(t, 1.0, b.WhiskerLo)
	assert.Equal(t, 9.0, b.WhiskerHi)
	assert.Equal(t, []float64{100}, b.Outliers)
}

func TestComputeKPIs(t *testing.T) {
	records := []file.Record{
		rec("A", 0, 10, 1, ""),
		rec("A", 0, 25, 4, "Customer already exists"),
		rec("A", 0, 30, 2, "Timeout"),
		rec("A", 0, nan, 1, "Record already exists in CBS"),
	}

	k := ComputeKPIs(records, 20)
	assert.Equal(t, 4, k.TotalRecords)
	assert.InDelta(t, 25.0, k.RejectionRate, 1e-9)
	assert.InDelta(t, 50.0, k.ExceedTargetRate, 1e-9)
	assert.InDelta(t, 50.0, k.DuplicateRate, 1e-9)
	assert.InDelta(t, 50.0, k.FirstAttemptRate, 1e-9)
	assert.InDelta(t, 65.0/3, k.MeanTime, 1e-9)

	empty := ComputeKPIs(nil, 20)
	assert.Equal(t, 0, empty.TotalRecords)
	assert.False(t, empty.HasMeanTime)
}

func randomRecords(seed int64, n int) []file.Record {
	rng := rand.New(rand.NewSource(seed))
	stages := []string{"Select Document Type", "Document Scan", "Upload Document", "KYC Check", "KYC Approved", ""}
	errs := []string{"", "", "Timeout", "Customer already exists", "Blurry image"}
	records := make([]file.Record, n)
	for i := range records {
		r := file.Record{
			Stage:   stages[rng.Intn(len(stages))],
			Failure: float64(rng.Intn(5)) / 4,
			Time:    rng.Float64() * 60,
			Attempt: float64(rng.Intn(4) + 1),
			Error:   errs[rng.Intn(len(errs))],
		}
		if rng.Intn(10) == 0 {
			r.Failure = nan
		}
		if rng.Intn(10) == 0 {
			r.Time = nan
		}
		if rng.Intn(10) == 0 {
			r.Attempt = nan
		}
		records[i] = r
	}
	return records
}

func TestRatesWithinBounds(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		records := randomRecords(seed, 200)
		s := Summarize(records, Options{
			TargetSeconds:      20,
			TopErrors:          10,
			DashboardTopErrors: 5,
			Stages:             []string{"Select Document Type", "Document Scan", "Upload Document", "KYC Check", "KYC Approved"},
		})

		var rates []float64
		sum := 0
		for _, c := range s.StageCounts {
			rates = append(rates, c.Percent)
			sum += c.Count
		}
		require.Equal(t, len(records), sum)
		for _, c := range s.StageFailures {
			rates = append(rates, c.Mean, c.Max)
		}
		for _, c := range s.AttemptCounts {
			rates = append(rates, c.Percent)
		}
		for _, c := range s.AttemptFailures {
			rates = append(rates, c.Mean, c.Std, c.Max)
		}
		for _, c := range s.TopErrors {
			rates = append(rates, c.Percent)
		}
		for _, c := range s.TargetStats {
			rates = append(rates, c.ExceedRate)
		}
		for _, c := range s.Funnel {
			rates = append(rates, c.SuccessRate, c.FailureRate)
			require.Equal(t, c.Total, c.Success+c.Failure)
		}
		k := s.KPIs
		rates = append(rates, k.RejectionRate, k.ExceedTargetRate, k.DuplicateRate, k.FirstAttemptRate)

		for _, r := range rates {
			require.False(t, math.IsNaN(r))
			require.GreaterOrEqual(t, r, 0.0)
			require.LessOrEqual(t, r, 100.0)
		}
	}
}

func TestSummarizeIdempotent(t *testing.T) {
	records := randomRecords(42, 300)
	opts := Options{TargetSeconds: 20, TopErrors: 10, DashboardTopErrors: 5, Stages: []string{"Document Scan", "KYC Check"}}

	first := Summarize(records, opts)
	second := Summarize(records, opts)
	assert.Equal(t, first, second)
	assert.Len(t, first.TimeHistogram, DefaultBins)
	assert.LessOrEqual(t, len(first.DashboardErrors), 5)
}

func TestKPILines(t *testing.T) {
	k := KPIs{
		TotalRecords:     12345,
		RejectionRate:    1.234,
		ExceedTargetRate: 18.75,
		MeanTime:         16.04,
		HasMeanTime:      true,
		DuplicateRate:    0.5,
		FirstAttemptRate: 96.25,
	}
	assert.Equal(t, []string{
		"Total Records Analyzed: 12,345",
		"Overall Rejection Rate: 1.23% (Target: <1%)",
		"Transactions Exceeding 20s Target: 18.8% (Target: <20%)",
		"Average Processing Time: 16.0 seconds (Target: <18s)",
		"Duplicate KYC Rate: 0.50% (Target: <1%)",
		"First Attempt Success Rate: 96.2% (Target: >95%)",
	}, k.Lines(20))

	empty := KPIs{}.Lines(20)
	assert.Equal(t, "Total Records Analyzed: 0", empty[0])
	assert.Equal(t, "Average Processing Time: n/a seconds (Target: <18s)", empty[3])
}

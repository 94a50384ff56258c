// Package profiling summarizes length-of-stay distributions.
package profiling

import (
	"math"
	"sort"

	"egresos/domain/core"
	"egresos/domain/discharge"

	"github.com/montanaflynn/stats"
)

// StaySummary describes the stays of one hospital for one year and diagnosis,
// next to the national median for the same cell.
type StaySummary struct {
	Year           int
	Diagnosis      string
	Count          int
	Mean           float64
	StdDev         float64
	Min            float64
	Max            float64
	Median         float64
	P10            float64
	P90            float64
	Skewness       float64
	LongStays      int // above Q3 + 1.5*IQR
	NationalCount  int
	NationalMedian float64
}

// StayProfiler builds length-of-stay summaries.
type StayProfiler struct{}

// NewStayProfiler creates a new stay profiler
func NewStayProfiler() *StayProfiler {
	return &StayProfiler{}
}

type cell struct {
	year      int
	diagnosis string
}

// Profile summarizes the hospital's stays per year and diagnosis, ordered by
// year and then diagnosis.
func (p *StayProfiler) Profile(national []discharge.Record, hospital discharge.HospitalCode) ([]StaySummary, error) {
	if len(national) == 0 {
		return nil, core.NewEmptyInputError("national records")
	}

	own := map[cell][]float64{}
	all := map[cell][]float64{}
	for i := range national {
		r := &national[i]
		c := cell{year: r.Year, diagnosis: r.Diagnosis}
		all[c] = append(all[c], float64(r.StayDays))
		if r.HospitalCode == hospital {
			own[c] = append(own[c], float64(r.StayDays))
		}
	}
	if len(own) == 0 {
		return nil, core.NewUnknownHospitalError(int64(hospital))
	}

	cells := make([]cell, 0, len(own))
	for c := range own {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].year != cells[j].year {
			return cells[i].year < cells[j].year
		}
		return cells[i].diagnosis < cells[j].diagnosis
	})

	out := make([]StaySummary, 0, len(cells))
	for _, c := range cells {
		s, err := Summarize(own[c])
		if err != nil {
			return nil, err
		}
		s.Year = c.year
		s.Diagnosis = c.diagnosis

		s.NationalCount = len(all[c])
		if s.NationalMedian, err = stats.Median(all[c]); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Summarize computes the distribution fields of a StaySummary for a non-empty
// sample.
func Summarize(data []float64) (StaySummary, error) {
	s := StaySummary{Count: len(data)}

	mean, err := stats.Mean(data)
	if err != nil {
		return s, err
	}
	stdDev, err := stats.StandardDeviation(data)
	if err != nil {
		return s, err
	}
	min, err := stats.Min(data)
	if err != nil {
		return s, err
	}
	max, err := stats.Max(data)
	if err != nil {
		return s, err
	}
	median, err := stats.Median(data)
	if err != nil {
		return s, err
	}
	p10, err := stats.PercentileNearestRank(data, 10)
	if err != nil {
		return s, err
	}
	p90, err := stats.PercentileNearestRank(data, 90)
	if err != nil {
		return s, err
	}
	q1, err := stats.PercentileNearestRank(data, 25)
	if err != nil {
		return s, err
	}
	q3, err := stats.PercentileNearestRank(data, 75)
	if err != nil {
		return s, err
	}

	s.Mean = mean
	s.StdDev = stdDev
	s.Min = min
	s.Max = max
	s.Median = median
	s.P10 = p10
	s.P90 = p90
	s.Skewness = skewness(data, mean, stdDev)
	s.LongStays = longStays(data, q1, q3)
	return s, nil
}

// skewness is the adjusted Fisher-Pearson coefficient; zero for constant or
// tiny samples.
func skewness(data []float64, mean, stdDev float64) float64 {
	if len(data) < 3 || stdDev == 0 {
		return 0
	}

	n := float64(len(data))
	sum := 0.0
	for _, x := range data {
		d := (x - mean) / stdDev
		sum += d * d * d
	}
	return sum / n * math.Sqrt(n*(n-1)) / (n - 2)
}

func longStays(data []float64, q1, q3 float64) int {
	upper := q3 + 1.5*(q3-q1)
	n := 0
	for _, x := range data {
		if x > upper {
			n++
		}
	}
	return n
}

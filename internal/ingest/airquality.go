package ingest

import (
	"context"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/negros-cram/brrs/internal/fetcher"
	"github.com/negros-cram/brrs/internal/model"
)

// MonthlyReading is the average of one city's hourly readings in a month.
type MonthlyReading struct {
	City       string
	Year       int
	Month      int
	AvgAQI     float64
	AvgPM25    model.Optional
	AvgPM10    model.Optional
	AvgO3      model.Optional
	AvgNO2     model.Optional
	AvgCO      model.Optional
	DataPoints int
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(s string) {
	if v := nonNegativeFloat(s); v != nil {
		m.sum += *v
		m.n++
	}
}

func (m mean) value() model.Optional {
	if m.n == 0 {
		return model.None()
	}
	return model.Some(m.sum / float64(m.n))
}

type monthKey struct {
	city        string
	year, month int
}

type monthAcc struct {
	city                         string
	aqi, pm25, pm10, o3, no2, co mean
	rows                         int
}

// AggregateAirQuality averages an hourly OpenWeather export per city, year
// and month. Rows without a parsable month or AQI are skipped.
func AggregateAirQuality(ctx context.Context, r io.Reader) ([]MonthlyReading, *Report, error) {
	recs, err := fetcher.ReadRecords(ctx, r, fetcher.CSVOptions{
		Required: []string{"city_name", "__month", "main.aqi"},
	})
	if err != nil {
		return nil, nil, eris.Wrap(err, "ingest: read air quality csv")
	}

	rep := &Report{}
	accs := make(map[monthKey]*monthAcc)
	for _, rec := range recs {
		city := strings.TrimSpace(rec.Get("city_name"))
		year, month, ok := parseMonth(rec.Get("__month"))
		if city == "" || !ok {
			rep.Skip("line " + itoa(rec.Line))
			continue
		}
		if nonNegativeFloat(rec.Get("main.aqi")) == nil {
			rep.Skip("line " + itoa(rec.Line))
			continue
		}
		k := monthKey{city: MunicipalityKey(city), year: year, month: month}
		acc, ok := accs[k]
		if !ok {
			acc = &monthAcc{city: city}
			accs[k] = acc
		}
		acc.aqi.add(rec.Get("main.aqi"))
		acc.pm25.add(rec.Get("components.pm2_5"))
		acc.pm10.add(rec.Get("components.pm10"))
		acc.o3.add(rec.Get("components.o3"))
		acc.no2.add(rec.Get("components.no2"))
		acc.co.add(rec.Get("components.co"))
		acc.rows++
		rep.Processed++
	}

	out := make([]MonthlyReading, 0, len(accs))
	for k, acc := range accs {
		out = append(out, MonthlyReading{
			City:       acc.city,
			Year:       k.year,
			Month:      k.month,
			AvgAQI:     acc.aqi.value().Or(0),
			AvgPM25:    acc.pm25.value(),
			AvgPM10:    acc.pm10.value(),
			AvgO3:      acc.o3.value(),
			AvgNO2:     acc.no2.value(),
			AvgCO:      acc.co.value(),
			DataPoints: acc.rows,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.City != b.City {
			return a.City < b.City
		}
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Month < b.Month
	})
	return out, rep, nil
}

// ResolveAirQuality attaches readings to municipalities by name, accepting
// "<name> City" spellings. Cities with no municipality are reported.
func ResolveAirQuality(readings []MonthlyReading, municipalities []model.MunicipalitySummary) ([]model.AirQuality, *Report) {
	exact := make(map[string]int64, len(municipalities))
	for _, m := range municipalities {
		k := MunicipalityKey(m.Name)
		if _, dup := exact[k]; !dup {
			exact[k] = m.ID
		}
	}

	rep := &Report{}
	missing := make(map[string]bool)
	var out []model.AirQuality
	for _, r := range readings {
		id, ok := exact[MunicipalityKey(r.City)]
		if !ok {
			if !missing[r.City] {
				missing[r.City] = true
				rep.Skip(r.City)
			}
			continue
		}
		out = append(out, model.AirQuality{
			MunicipalityID: id,
			Year:           r.Year,
			Month:          r.Month,
			AvgAQI:         r.AvgAQI,
			AvgPM25:        r.AvgPM25,
			AvgPM10:        r.AvgPM10,
			AvgO3:          r.AvgO3,
			AvgNO2:         r.AvgNO2,
			AvgCO:          r.AvgCO,
			DataPoints:     r.DataPoints,
		})
		rep.Processed++
	}
	return out, rep
}

// parseMonth reads the leading YYYYMM of a month stamp such as "202403" or
// "2024-03-01".
func parseMonth(s string) (year, month int, ok bool) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if len(digits) < 6 {
		return 0, 0, false
	}
	year, err := strconv.Atoi(digits[:4])
	if err != nil {
		return 0, 0, false
	}
	month, err = strconv.Atoi(digits[4:6])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, false
	}
	return year, month, true
}

func itoa(n int) string { return strconv.Itoa(n) }

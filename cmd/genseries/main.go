package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"

	"tsprep/internal/model"
)

func main() {
	var (
		startStr      string
		endStr        string
		freq          time.Duration
		outFile       string
		covariatesOut string
		item          string
		missing       int
		duplicates    int
		nans          int
		seed          int64
	)
	flag.StringVar(&startStr, "start", "2017-01-01 00:00:00", "first timestamp (UTC)")
	flag.StringVar(&endStr, "end", "2018-09-30 23:00:00", "last timestamp (UTC)")
	flag.DurationVar(&freq, "freq", time.Hour, "sampling frequency")
	flag.StringVar(&outFile, "out", "raw.csv", "raw target output file")
	flag.StringVar(&covariatesOut, "covariates-out", "", "optional raw weather covariates output file")
	flag.StringVar(&item, "item", "client_1", "item id for every row")
	flag.IntVar(&missing, "missing", 10, "number of rows to drop")
	flag.IntVar(&duplicates, "duplicates", 5, "number of rows to duplicate")
	flag.IntVar(&nans, "nans", 5, "number of values to blank out")
	flag.Int64Var(&seed, "seed", 42, "rng seed")
	flag.Parse()

	start, err := model.ParseTimestamp(startStr)
	if err != nil {
		log.Fatalf("bad -start: %v", err)
	}
	end, err := model.ParseTimestamp(endStr)
	if err != nil {
		log.Fatalf("bad -end: %v", err)
	}

	rng := rand.New(rand.NewSource(seed))
	if err := generateTarget(outFile, start, end, freq, item, missing, duplicates, nans, rng); err != nil {
		log.Fatalf("generation failed: %v", err)
	}
	if covariatesOut != "" {
		if err := generateWeather(covariatesOut, start, end, freq, item, nans, rng); err != nil {
			log.Fatalf("covariate generation failed: %v", err)
		}
	}
}

// generateTarget writes a headered raw series with the usual real-world
// defects injected: dropped rows, duplicated rows, blank values.
func generateTarget(path string, start, end time.Time, freq time.Duration, item string, missing, duplicates, nans int, rng *rand.Rand) error {
	n := int(end.Sub(start)/freq) + 1
	if n <= 0 {
		return fmt.Errorf("empty range %s..%s", start, end)
	}

	drop := pickSlots(rng, n, missing)
	dup := pickSlots(rng, n, duplicates)
	blank := pickSlots(rng, n, nans)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"timestamp", "value", "item_id"}); err != nil {
		return err
	}
	rows := 0
	for i := 0; i < n; i++ {
		if drop[i] {
			continue
		}
		ts := model.FormatTimestamp(start.Add(time.Duration(i) * freq))
		val := loadValue(i, rng)
		cell := strconv.FormatFloat(val, 'f', 3, 64)
		if blank[i] {
			cell = ""
		}
		if err := cw.Write([]string{ts, cell, item}); err != nil {
			return err
		}
		rows++
		if dup[i] {
			// Same timestamp, different value: the cleaner must keep the first.
			if err := cw.Write([]string{ts, strconv.FormatFloat(val+1000, 'f', 3, 64), item}); err != nil {
				return err
			}
			rows++
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	log.Printf("generated %d target rows to %s (dropped=%d duplicated=%d blanked=%d)", rows, path, missing, duplicates, nans)
	return nil
}

// generateWeather writes hourly covariates in the shape of the public
// city-weather exports: temperature, precipitation, cloud cover, condition.
func generateWeather(path string, start, end time.Time, freq time.Duration, item string, nans int, rng *rand.Rand) error {
	n := int(end.Sub(start)/freq) + 1
	blank := pickSlots(rng, n, nans)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	conditions := []string{"Clear", "Clouds", "Rain", "Snow", "Mist"}

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"timestamp", "temperature", "rain_1h", "snow_1h", "clouds_all", "weather", "item_id"}); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		ts := model.FormatTimestamp(start.Add(time.Duration(i) * freq))
		day := float64(i%24) / 24
		year := float64(i%8766) / 8766
		temp := 281 + 12*math.Sin(2*math.Pi*year) + 4*math.Sin(2*math.Pi*day) + rng.Float64()*2
		rain := 0.0
		if rng.Float64() < 0.08 {
			rain = rng.Float64() * 3
		}
		snow := 0.0
		if temp < 273 && rng.Float64() < 0.05 {
			snow = rng.Float64() * 2
		}
		clouds := float64(rng.Intn(101))
		cond := conditions[rng.Intn(len(conditions))]

		tempCell := strconv.FormatFloat(temp, 'f', 2, 64)
		if blank[i] {
			tempCell = ""
		}
		rec := []string{
			ts,
			tempCell,
			strconv.FormatFloat(rain, 'f', 2, 64),
			strconv.FormatFloat(snow, 'f', 2, 64),
			strconv.FormatFloat(clouds, 'f', 0, 64),
			cond,
			item,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	log.Printf("generated %d covariate rows to %s", n, path)
	return nil
}

// loadValue is a plausible household load curve: daily and weekly cycles
// plus noise, in kW.
func loadValue(i int, rng *rand.Rand) float64 {
	day := float64(i%24) / 24
	week := float64(i%168) / 168
	return 35 +
		12*math.Sin(2*math.Pi*day-math.Pi/2) +
		5*math.Sin(2*math.Pi*week) +
		rng.Float64()*4
}

// pickSlots marks count distinct slots out of n, never the first slot so the
// generated file always covers its own start.
func pickSlots(rng *rand.Rand, n, count int) map[int]bool {
	picked := make(map[int]bool, count)
	if n <= 1 {
		return picked
	}
	for len(picked) < count && len(picked) < n-1 {
		picked[1+rng.Intn(n-1)] = true
	}
	return picked
}

package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brickscout/brickscout/internal/api"
	"github.com/brickscout/brickscout/internal/scrape"
	"github.com/brickscout/brickscout/internal/valuation"
)

type fakeCatalog struct {
	themes    []scrape.ThemeRecord
	themesErr error
	sets      map[string][]scrape.SetRecord
	setsErr   map[string]error
}

func (f *fakeCatalog) Themes(context.Context) ([]scrape.ThemeRecord, error) {
	return f.themes, f.themesErr
}

func (f *fakeCatalog) Sets(_ context.Context, theme scrape.ThemeRecord) ([]scrape.SetRecord, error) {
	return f.sets[theme.Name], f.setsErr[theme.Name]
}

type fakeValuation struct {
	gotItems []string
	records  []scrape.ValuationRecord
	summary  valuation.RunSummary
	err      error
}

func (f *fakeValuation) Run(_ context.Context, items []string) ([]scrape.ValuationRecord, valuation.RunSummary, error) {
	f.gotItems = items
	return f.records, f.summary, f.err
}

type fakeExporter struct {
	themes       []scrape.ThemeRecord
	sets         []scrape.SetRecord
	valuations   []scrape.ValuationRecord
	stored       []scrape.ThemeRecord
	readErr      error
	themesWrites int
}

func (f *fakeExporter) WriteThemes(themes []scrape.ThemeRecord) error {
	f.themes = themes
	f.themesWrites++
	return nil
}

func (f *fakeExporter) WriteSets(sets []scrape.SetRecord) error {
	f.sets = sets
	return nil
}

func (f *fakeExporter) WriteValuations(valuations []scrape.ValuationRecord) error {
	f.valuations = valuations
	return nil
}

func (f *fakeExporter) ReadThemes() ([]scrape.ThemeRecord, error) {
	return f.stored, f.readErr
}

type fakeStore struct {
	themes     []scrape.ThemeRecord
	sets       []scrape.SetRecord
	valuations []scrape.ValuationRecord
}

func (f *fakeStore) UpsertThemes(_ context.Context, themes []scrape.ThemeRecord) error {
	f.themes = themes
	return nil
}

func (f *fakeStore) UpsertSets(_ context.Context, sets []scrape.SetRecord) error {
	f.sets = sets
	return nil
}

func (f *fakeStore) UpsertValuations(_ context.Context, valuations []scrape.ValuationRecord) error {
	f.valuations = valuations
	return nil
}

func TestRunFullPipeline(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{
		themes: []scrape.ThemeRecord{
			{Name: "City", URL: "https://shop.example/themes/city"},
			{Name: "Ideas", URL: "https://shop.example/themes/ideas"},
		},
		sets: map[string][]scrape.SetRecord{
			"City": {
				{ItemNumber: "60316", Name: "Police Station", PieceCount: 668},
				{ItemNumber: "60316", Name: "Police Station", PieceCount: 668},
				{ItemNumber: "60398", Name: "Family House", PieceCount: 462},
			},
			"Ideas": {
				{ItemNumber: "40632", Name: "Keychain", PieceCount: 1},
				{ItemNumber: "BBX-1", Name: "Oddball", PieceCount: 900},
			},
		},
	}
	val := &fakeValuation{
		records: []scrape.ValuationRecord{{ItemNumber: "60316", Past6Months: "$84.12"}},
		summary: valuation.RunSummary{Attempted: 2, Parsed: 1, SoftFailures: 1, Skipped: []string{"60398"}},
	}
	exp := &fakeExporter{}
	store := &fakeStore{}
	tracker := api.NewTracker("run-1", time.Now())

	runner := New(Config{MinPieceCount: 100}, cat, val, exp, store, tracker, nil)
	counters, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"60316", "60398"}, val.gotItems)
	require.Equal(t, 2, counters.Themes)
	require.Equal(t, 5, counters.Sets)
	require.Equal(t, 2, counters.ValuationsTried)
	require.Equal(t, 1, counters.ValuationsParsed)
	require.Equal(t, 1, counters.SoftFailures)

	require.Len(t, exp.themes, 2)
	require.Len(t, exp.sets, 5)
	require.Len(t, exp.valuations, 1)
	require.Len(t, store.themes, 2)
	require.Len(t, store.sets, 5)
	require.Len(t, store.valuations, 1)

	status := tracker.Snapshot()
	require.Equal(t, "done", status.Stage)
	require.Equal(t, counters, status.Counters)
}

func TestRunFallsBackToExportedThemes(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{
		themesErr: errors.New("selector drift"),
		sets: map[string][]scrape.SetRecord{
			"City": {{ItemNumber: "60316", PieceCount: 668}},
		},
	}
	val := &fakeValuation{summary: valuation.RunSummary{Attempted: 1, Parsed: 0}}
	exp := &fakeExporter{
		stored: []scrape.ThemeRecord{{Name: "City", URL: "https://shop.example/themes/city"}},
	}

	runner := New(Config{MinPieceCount: 100}, cat, val, exp, nil, nil, nil)
	counters, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, counters.Themes)
	require.Equal(t, []string{"60316"}, val.gotItems)
}

func TestRunFailsWithoutThemes(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{themesErr: errors.New("selector drift")}
	exp := &fakeExporter{readErr: errors.New("no file")}

	runner := New(Config{}, cat, &fakeValuation{}, exp, nil, nil, nil)
	_, err := runner.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "scrape theme index")
}

func TestRunSkipsValuationWhenNothingPassesFilter(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{
		themes: []scrape.ThemeRecord{{Name: "Ideas", URL: "https://shop.example/themes/ideas"}},
		sets: map[string][]scrape.SetRecord{
			"Ideas": {{ItemNumber: "40632", PieceCount: 1}},
		},
	}
	val := &fakeValuation{}

	runner := New(Config{MinPieceCount: 100}, cat, val, &fakeExporter{}, nil, nil, nil)
	counters, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Nil(t, val.gotItems)
	require.Equal(t, 0, counters.ValuationsTried)
}

func TestRunExportsPartialValuationsOnError(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{
		themes: []scrape.ThemeRecord{{Name: "City", URL: "https://shop.example/themes/city"}},
		sets: map[string][]scrape.SetRecord{
			"City": {
				{ItemNumber: "60316", PieceCount: 668},
				{ItemNumber: "60398", PieceCount: 462},
			},
		},
	}
	val := &fakeValuation{
		records: []scrape.ValuationRecord{{ItemNumber: "60316"}},
		summary: valuation.RunSummary{Attempted: 1, Parsed: 1},
		err:     context.Canceled,
	}
	exp := &fakeExporter{}

	runner := New(Config{MinPieceCount: 100}, cat, val, exp, nil, nil, nil)
	_, err := runner.Run(context.Background())
	require.Error(t, err)
	require.Len(t, exp.valuations, 1)
}

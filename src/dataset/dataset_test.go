package dataset

import (
	"sync"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() [][]string {
	return [][]string{
		{"PassengerId", "Survived", "Pclass", "Name", "Sex", "Age", "SibSp", "Parch", "Fare"},
		{"1", "0", "3", "Braund, Mr. Owen Harris", "male", "22", "1", "0", "7.25"},
		{"2", "1", "1", "Cumings, Mrs. John Bradley", "female", "38", "1", "0", "71.2833"},
		{"3", "1", "3", "Heikkinen, Miss. Laina", "female", "", "0", "0", "7.925"},
		{"4", "1", "1", "Futrelle, Mrs. Jacques Heath", "female", "0.42", "1", "0", "53.1"},
		{"5", "0", "2", "Allen, Mr. William Henry", "", "80", "0", "2", ""},
	}
}

func TestNewComputesAgeBounds(t *testing.T) {
	ds, err := New(LoadRecords(sampleRecords()), "memory")
	require.NoError(t, err)

	lo, hi := ds.AgeBounds()
	assert.Equal(t, 0, lo)
	assert.Equal(t, 80, hi)
	assert.Equal(t, 5, ds.Len())
	assert.Equal(t, "memory", ds.Source())
	assert.False(t, ds.LoadedAt().IsZero())
}

func TestNewRejectsMissingColumn(t *testing.T) {
	records := [][]string{
		{"PassengerId", "Survived", "Pclass", "Sex", "Age", "SibSp", "Parch"},
		{"1", "0", "3", "male", "22", "1", "0"},
	}
	_, err := New(LoadRecords(records), "memory")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Fare"`)
}

func TestRecordsWithoutIDColumn(t *testing.T) {
	records := [][]string{
		{"Survived", "Pclass", "Sex", "Age", "SibSp", "Parch", "Fare"},
		{"0", "3", "male", "22", "1", "0", "7.25"},
		{"1", "1", "female", "38", "1", "0", "71.2833"},
	}
	ds, err := New(LoadRecords(records), "memory")
	require.NoError(t, err)

	recs := Records(ds.Frame())
	require.Len(t, recs, 2)
	assert.Equal(t, 1, recs[0].ID)
	assert.Equal(t, 2, recs[1].ID)
}

func TestAgeBoundsWithoutAges(t *testing.T) {
	records := [][]string{
		{"Survived", "Pclass", "Sex", "Age", "SibSp", "Parch", "Fare"},
		{"0", "3", "male", "", "1", "0", "7.25"},
	}
	ds, err := New(LoadRecords(records), "memory")
	require.NoError(t, err)
	lo, hi := ds.AgeBounds()
	assert.Equal(t, 0, lo)
	assert.Equal(t, 0, hi)
}

func TestRecordsPreserveOrderAndMissingValues(t *testing.T) {
	recs := Records(LoadRecords(sampleRecords()))
	require.Len(t, recs, 5)

	assert.Equal(t, 1, recs[0].ID)
	assert.False(t, recs[0].Survived)
	assert.Equal(t, 3, recs[0].Pclass)
	assert.Equal(t, "male", recs[0].Sex)
	require.NotNil(t, recs[0].Age)
	assert.Equal(t, 22.0, *recs[0].Age)

	assert.Nil(t, recs[2].Age, "empty age is missing")
	assert.Empty(t, recs[4].Sex, "empty sex is missing")
	assert.Nil(t, recs[4].Fare, "empty fare is missing")
	assert.Equal(t, 2, recs[4].Parch)
}

func TestHolderSwap(t *testing.T) {
	first, err := New(LoadRecords(sampleRecords()), "first")
	require.NoError(t, err)
	second, err := New(LoadRecords(sampleRecords()[:3]), "second")
	require.NoError(t, err)

	h := NewHolder(first)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ds := h.Get()
			assert.Contains(t, []int{5, 2}, ds.Len())
		}()
	}
	h.Set(second)
	wg.Wait()

	assert.Equal(t, "second", h.Get().Source())
}

func TestCanonicalizeRenamesAliases(t *testing.T) {
	aliases := map[string]string{ColAge: "AgeYears", ColSex: "Gender", ColFare: "Fare"}
	records := [][]string{
		{"Survived", "Pclass", "Gender", "AgeYears", "SibSp", "Parch", "Fare"},
		{"1", "2", "female", "", "0", "0", "13"},
		{"0", "3", "male", "31.5", "0", "0", "8.05"},
	}
	df := Canonicalize(dataframe.LoadRecords(records, LoadOptions(aliases)...), aliases)

	ds, err := New(df, "aliased")
	require.NoError(t, err)
	assert.True(t, ds.Frame().Col(ColAge).Elem(0).IsNA(), "aliased column keeps float typing")
	assert.InDelta(t, 31.5, ds.Frame().Col(ColAge).Elem(1).Float(), 1e-9)
	assert.Equal(t, "female", ds.Frame().Col(ColSex).Elem(0).String())
}

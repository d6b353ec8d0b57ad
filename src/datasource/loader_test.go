package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TitanicExplorer/src/config"
	"TitanicExplorer/src/dataset"
)

const titanicCSV = `PassengerId,Survived,Pclass,Name,Sex,Age,SibSp,Parch,Ticket,Fare,Cabin,Embarked
1,0,3,"Braund, Mr. Owen Harris",male,22,1,0,A/5 21171,7.25,,S
2,1,1,"Cumings, Mrs. John Bradley (Florence Briggs Thayer)",female,38,1,0,PC 17599,71.2833,C85,C
3,1,3,"Heikkinen, Miss. Laina",female,26,0,0,STON/O2. 3101282,7.925,,S
4,1,1,"Futrelle, Mrs. Jacques Heath (Lily May Peel)",female,35,1,0,113803,53.1,C123,S
5,0,3,"Allen, Mr. William Henry",male,35,0,0,373450,8.05,,S
6,0,3,"Moran, Mr. James",male,,0,0,330877,8.4583,,Q
`

type stubFetcher struct {
	body []byte
	err  error
	url  string
}

func (s *stubFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	s.url = url
	return s.body, s.err
}

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	cfg, dcfg := config.Default()
	return NewLoader(cfg, dcfg)
}

func TestLoadRemoteCSV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(titanicCSV))
	}))
	defer srv.Close()

	l := newTestLoader(t)
	l.URL = srv.URL + "/titanic_dataset.csv"

	ds, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, ds.Len())
	assert.Equal(t, l.URL, ds.Source())

	lo, hi := ds.AgeBounds()
	assert.Equal(t, 22, lo)
	assert.Equal(t, 38, hi)
}

func TestLoadUsesDefaultURL(t *testing.T) {
	stub := &stubFetcher{body: []byte(titanicCSV)}
	l := newTestLoader(t).WithFetcher(stub)

	_, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, config.DefaultSourceURL, stub.url)
	assert.False(t, l.IsLocal())
}

func TestLoadUnreachable(t *testing.T) {
	l := newTestLoader(t).WithFetcher(&stubFetcher{err: errors.New("connection refused")})

	_, err := l.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestLoadMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":          "   \n",
		"ragged rows":    "Survived,Pclass\n1,2,3\n",
		"missing column": "Survived,Pclass,Sex,Age,SibSp,Parch\n1,1,female,30,0,0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			l := newTestLoader(t).WithFetcher(&stubFetcher{body: []byte(body)})
			_, err := l.Load(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestLoadLocalFileWithAliases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passengers.csv")
	body := "id,alive,class,gender,years,sibsp,parch,price\n1,1,2,female,29,0,0,26\n2,0,3,male,,1,1,15.5\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"),
		[]byte(`{"source": {"path": "`+filepath.ToSlash(path)+`"}}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dataconfig.json"), []byte(`{"columns": {
		"id": "id", "survived": "alive", "pclass": "class", "sex": "gender",
		"age": "years", "sibsp": "sibsp", "parch": "parch", "fare": "price"}}`), 0644))

	cfg, dcfg, err := config.LoadConfig(dir, "config.json", "dataconfig.json")
	require.NoError(t, err)

	l := NewLoader(cfg, dcfg)
	assert.True(t, l.IsLocal())

	ds, err := l.Load(context.Background())
	require.NoError(t, err)

	recs := dataset.Records(ds.Frame())
	require.Len(t, recs, 2)
	assert.True(t, recs[0].Survived)
	assert.Equal(t, 2, recs[0].Pclass)
	assert.Equal(t, "female", recs[0].Sex)
	require.NotNil(t, recs[1].Fare)
	assert.Equal(t, 15.5, *recs[1].Fare)
	assert.Nil(t, recs[1].Age)
}

func TestLoadMissingLocalFile(t *testing.T) {
	l := newTestLoader(t)
	l.Path = filepath.Join(t.TempDir(), "nope.csv")

	_, err := l.Load(context.Background())
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestLoadUnknownFormat(t *testing.T) {
	l := newTestLoader(t).WithFetcher(&stubFetcher{body: []byte(titanicCSV)})
	l.Format = "parquet"

	_, err := l.Load(context.Background())
	assert.ErrorIs(t, err, ErrMalformed)
}

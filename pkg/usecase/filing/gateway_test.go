package filing_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/edgarchat/pkg/adapter"
	"github.com/m-mizutani/edgarchat/pkg/model"
	"github.com/m-mizutani/edgarchat/pkg/usecase/filing"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

// mockEDGAR is a mock implementation of adapter.EDGAR for testing
type mockEDGAR struct {
	tickersFunc     func(ctx context.Context) ([]*model.Company, error)
	submissionsFunc func(ctx context.Context, cik model.CIK) (*adapter.Submissions, error)
	documentFunc    func(ctx context.Context, f *model.Filing) ([]byte, error)
}

func (m *mockEDGAR) CompanyTickers(ctx context.Context) ([]*model.Company, error) {
	if m.tickersFunc != nil {
		return m.tickersFunc(ctx)
	}
	return nil, errors.New("not implemented")
}

func (m *mockEDGAR) Submissions(ctx context.Context, cik model.CIK) (*adapter.Submissions, error) {
	if m.submissionsFunc != nil {
		return m.submissionsFunc(ctx, cik)
	}
	return nil, errors.New("not implemented")
}

func (m *mockEDGAR) Document(ctx context.Context, f *model.Filing) ([]byte, error) {
	if m.documentFunc != nil {
		return m.documentFunc(ctx, f)
	}
	return nil, errors.New("not implemented")
}

var directory = []*model.Company{
	{CIK: "0000320193", Ticker: "AAPL", Name: "Apple Inc."},
	{CIK: "0001418121", Ticker: "APLE", Name: "Apple Hospitality REIT, Inc."},
	{CIK: "0000789019", Ticker: "MSFT", Name: "MICROSOFT CORP"},
	{CIK: "0001318605", Ticker: "TSLA", Name: "Tesla, Inc."},
	{CIK: "0001018724", Ticker: "AMZN", Name: "AMAZON COM INC"},
	{CIK: "0000001001", Ticker: "APP", Name: "AppLovin Corp"},
	{CIK: "0000001002", Ticker: "PINE", Name: "Pineapple Energy Inc."},
	{CIK: "0000001003", Ticker: "GAPL", Name: "Golden Apple Oil"},
	{CIK: "0000001004", Ticker: "APLX", Name: "Apple Rush Co"},
}

func TestRankCompanies(t *testing.T) {
	t.Run("exact ticker ranks first", func(t *testing.T) {
		matches := filing.RankCompanies(directory, "aapl")
		gt.A(t, matches).Length(1)
		gt.Equal(t, matches[0].Company.Ticker, "AAPL")
		gt.Equal(t, matches[0].Score, filing.ScoreExactTicker)
	})

	t.Run("cik matches like a ticker", func(t *testing.T) {
		matches := filing.RankCompanies(directory, "789019")
		gt.A(t, matches).Length(1)
		gt.Equal(t, matches[0].Company.Ticker, "MSFT")
	})

	t.Run("name contains term, capped and stable", func(t *testing.T) {
		matches := filing.RankCompanies(directory, "apple")
		gt.A(t, matches).Length(5)
		for _, m := range matches {
			gt.Equal(t, m.Score, filing.ScoreNameContain)
		}
		// directory order is kept among equal scores
		gt.Equal(t, matches[0].Company.Ticker, "AAPL")
		gt.Equal(t, matches[1].Company.Ticker, "APLE")
		gt.Equal(t, matches[2].Company.Ticker, "PINE")
	})

	t.Run("exact name beats contains", func(t *testing.T) {
		matches := filing.RankCompanies(directory, "Tesla, Inc.")
		gt.Equal(t, matches[0].Company.Ticker, "TSLA")
		gt.Equal(t, matches[0].Score, filing.ScoreExactName)
	})

	t.Run("ticker beats name match for same term", func(t *testing.T) {
		dir := []*model.Company{
			{CIK: "0000000010", Ticker: "XAPP", Name: "App Holdings"},
			{CIK: "0000000011", Ticker: "APP", Name: "Other Corp"},
		}
		matches := filing.RankCompanies(dir, "app")
		gt.A(t, matches).Length(2)
		gt.Equal(t, matches[0].Company.Ticker, "APP")
		gt.Equal(t, matches[1].Company.Ticker, "XAPP")
	})

	t.Run("word match only without stronger hits", func(t *testing.T) {
		matches := filing.RankCompanies(directory, "microsoft corporation")
		gt.A(t, matches).Length(1)
		gt.Equal(t, matches[0].Company.Ticker, "MSFT")
		gt.Equal(t, matches[0].Score, filing.ScoreWordMatch)
	})

	t.Run("short words are ignored", func(t *testing.T) {
		gt.A(t, filing.RankCompanies(directory, "of co")).Length(0)
	})

	t.Run("empty name", func(t *testing.T) {
		gt.A(t, filing.RankCompanies(directory, "  ")).Length(0)
	})
}

func TestFindCompanies(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		gw := filing.New(&mockEDGAR{
			tickersFunc: func(ctx context.Context) ([]*model.Company, error) {
				return directory, nil
			},
		})
		companies, err := gw.FindCompanies(ctx, "Tesla")
		gt.NoError(t, err)
		gt.A(t, companies).Length(1)
		gt.Equal(t, companies[0].CIK, model.CIK("0001318605"))
	})

	t.Run("transport failure is returned", func(t *testing.T) {
		gw := filing.New(&mockEDGAR{
			tickersFunc: func(ctx context.Context) ([]*model.Company, error) {
				return nil, goerr.New("connection reset")
			},
		})
		_, err := gw.FindCompanies(ctx, "Tesla")
		gt.Error(t, err)
		gt.S(t, err.Error()).Contains("company directory")
	})
}

func TestLatestFiling(t *testing.T) {
	ctx := context.Background()
	sub := &adapter.Submissions{
		CIK: "0000320193",
		Filings: []*model.Filing{
			{FormType: "8-K", Accession: "a-1"},
			{FormType: "10-K/A", Accession: "a-2"},
			{FormType: "10-K", Accession: "a-3"},
			{FormType: "10-K", Accession: "a-4"},
		},
	}
	gw := filing.New(&mockEDGAR{
		submissionsFunc: func(ctx context.Context, cik model.CIK) (*adapter.Submissions, error) {
			switch cik {
			case "0000320193":
				return sub, nil
			case "0000000404":
				return nil, goerr.Wrap(adapter.ErrNotFound, "missing")
			default:
				return nil, goerr.New("server error")
			}
		},
	})

	f, err := gw.LatestFiling(ctx, "0000320193", model.FormAnnualReport)
	gt.NoError(t, err)
	gt.Equal(t, f.Accession, "a-3")

	f, err = gw.LatestFiling(ctx, "0000320193", model.FormQuarterlyReport)
	gt.NoError(t, err)
	gt.V(t, f == nil).Equal(true)

	f, err = gw.LatestFiling(ctx, "0000000404", model.FormAnnualReport)
	gt.NoError(t, err)
	gt.V(t, f == nil).Equal(true)

	_, err = gw.LatestFiling(ctx, "0000000500", model.FormAnnualReport)
	gt.Error(t, err)
}

func TestFetchExcerpt(t *testing.T) {
	ctx := context.Background()
	docs := map[string][]byte{
		"ok":    []byte("<html><body><p>Item 1A. Risk Factors</p><p>Our results depend on new products.</p></body></html>"),
		"empty": []byte("<html><body><script>x()</script></body></html>"),
	}
	gw := filing.New(&mockEDGAR{
		documentFunc: func(ctx context.Context, f *model.Filing) ([]byte, error) {
			if f.Accession == "missing" {
				return nil, goerr.Wrap(adapter.ErrNotFound, "gone")
			}
			if f.Accession == "broken" {
				return nil, goerr.New("timeout")
			}
			return docs[f.Accession], nil
		},
	})

	excerpt, err := gw.FetchExcerpt(ctx, &model.Filing{Accession: "ok"})
	gt.NoError(t, err)
	gt.Equal(t, excerpt.Sections, 1)
	gt.S(t, excerpt.Text).Contains("Risk Factors")

	excerpt, err = gw.FetchExcerpt(ctx, &model.Filing{Accession: "empty"})
	gt.NoError(t, err)
	gt.V(t, excerpt == nil).Equal(true)

	excerpt, err = gw.FetchExcerpt(ctx, &model.Filing{Accession: "missing"})
	gt.NoError(t, err)
	gt.V(t, excerpt == nil).Equal(true)

	_, err = gw.FetchExcerpt(ctx, &model.Filing{Accession: "broken"})
	gt.Error(t, err)
}

func TestGatewayWithEDGARServer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"0":{"cik_str":320193,"ticker":"AAPL","title":"Apple Inc."}}`))
	})
	mux.HandleFunc("/submissions/CIK0000320193.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"Apple Inc.","filings":{"recent":{
			"accessionNumber":["0000320193-23-000106"],
			"filingDate":["2023-11-03"],
			"form":["10-K"],
			"primaryDocument":["aapl-20230930.htm"]}}}`))
	})
	mux.HandleFunc("/Archives/edgar/data/320193/000032019323000106/aapl-20230930.htm", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
<p>Item 7. Management Discussion and Analysis</p>
<p>Total net sales decreased 3% during 2023 compared to 2022.</p>
</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	gw := filing.New(adapter.NewEDGAR(
		adapter.WithEDGARBaseURLs(srv.URL, srv.URL),
		adapter.WithEDGARRateLimit(100),
	), filing.WithExcerptOptions(filing.DefaultExcerptOptions()))

	companies, err := gw.FindCompanies(ctx, "Apple")
	gt.NoError(t, err)
	gt.A(t, companies).Length(1)

	f, err := gw.LatestFiling(ctx, companies[0].CIK, model.FormAnnualReport)
	gt.NoError(t, err)
	gt.Equal(t, f.FilingDate, "2023-11-03")

	excerpt, err := gw.FetchExcerpt(ctx, f)
	gt.NoError(t, err)
	gt.S(t, excerpt.Text).Contains("Total net sales decreased 3%")
}

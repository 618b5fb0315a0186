package readmodel

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/hydrogen-credit-ledger/internal/config"
	"github.com/hydrogen-credit-ledger/internal/domain/account"
	"github.com/hydrogen-credit-ledger/internal/domain/account/accounttest"
	"github.com/hydrogen-credit-ledger/internal/domain/journal/journaltest"
	"github.com/hydrogen-credit-ledger/internal/domain/token"
	"github.com/hydrogen-credit-ledger/internal/ledger/ledgertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	producerWallet = "0x00000000000000000000000000000000000000A1"
	otherWallet    = "0x00000000000000000000000000000000000000C3"
	buyerWallet    = "0x00000000000000000000000000000000000000B2"
	signerWallet   = "0x00000000000000000000000000000000000000FF"
)

type fixture struct {
	ledger   *ledgertest.Ledger
	accounts *accounttest.Repository
	journal  *journaltest.Repository
	merger   *Merger
	producer *account.Account
	other    *account.Account
	buyer    *account.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	ids := []string{"HYDR8628QLA5", "HYDR0000OTHR"}
	next := 0
	accounts := accounttest.NewRepository().WithGenerator(1, func() (string, error) {
		id := ids[next]
		next++
		return id, nil
	})

	producer, err := account.NewAccount("greenworks", "plant@example.com", account.RoleProducer, "Greenworks Electrolysis", producerWallet)
	require.NoError(t, err)
	require.NoError(t, accounts.Create(ctx, producer))

	other, err := account.NewAccount("sunfuel", "sun@example.com", account.RoleProducer, "Sunfuel Hydrogen", otherWallet)
	require.NoError(t, err)
	require.NoError(t, accounts.Create(ctx, other))

	buyer, err := account.NewAccount("buyer1", "buyer@example.com", account.RoleBuyer, "", buyerWallet)
	require.NoError(t, err)
	require.NoError(t, accounts.Create(ctx, buyer))

	l := ledgertest.New(signerWallet)
	j := journaltest.NewRepository()
	cfg := config.ReadModelConfig{RecentTransactions: 5, DefaultPageSize: 2, MaxPageSize: 3}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	return &fixture{
		ledger:   l,
		accounts: accounts,
		journal:  j,
		merger:   NewMerger(logger, l, accounts, j, cfg),
		producer: producer,
		other:    other,
		buyer:    buyer,
	}
}

func (f *fixture) mint(t *testing.T, to, factoryID string) uint64 {
	t.Helper()
	res, err := f.ledger.Mint(context.Background(), to, factoryID)
	require.NoError(t, err)
	return res.TokenID
}

func creditIDs(credits []Credit) []uint64 {
	ids := make([]uint64, len(credits))
	for i, c := range credits {
		ids[i] = c.ID
	}
	return ids
}

func TestMerger_ProducerView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	own1 := f.mint(t, producerWallet, "HYDR8628QLA5")
	foreign := f.mint(t, otherWallet, "HYDR0000OTHR")
	own2 := f.mint(t, producerWallet, "HYDR8628QLA5")
	_, err := f.ledger.Transfer(ctx, otherWallet, producerWallet, foreign)
	require.NoError(t, err)
	_, err = f.ledger.Retire(ctx, own2)
	require.NoError(t, err)

	credits, err := f.merger.ProducerView(ctx, f.producer, token.StatusAll)
	require.NoError(t, err)
	assert.Equal(t, []uint64{own1, foreign, own2}, creditIDs(credits))
	for _, c := range credits {
		assert.Equal(t, "Greenworks Electrolysis", c.FactoryName)
	}

	active, err := f.merger.ProducerView(ctx, f.producer, token.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, []uint64{own1, foreign}, creditIDs(active))
}

func TestMerger_BuyerView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.mint(t, producerWallet, "HYDR8628QLA5")
	b := f.mint(t, otherWallet, "HYDR0000OTHR")
	orphan := f.mint(t, otherWallet, "HYDRNOPRODUC")
	for _, tc := range []struct {
		id   uint64
		from string
	}{{a, producerWallet}, {b, otherWallet}, {orphan, otherWallet}} {
		_, err := f.ledger.Transfer(ctx, tc.from, buyerWallet, tc.id)
		require.NoError(t, err)
	}

	credits, err := f.merger.BuyerView(ctx, f.buyer)
	require.NoError(t, err)
	require.Len(t, credits, 3)
	assert.Equal(t, "Greenworks Electrolysis", credits[0].FactoryName)
	assert.Equal(t, "Sunfuel Hydrogen", credits[1].FactoryName)
	assert.Equal(t, UnknownFactory, credits[2].FactoryName)
	assert.Equal(t, 1, f.accounts.Lookups, "enrichment must use one bulk lookup")
}

func TestMerger_EnrichmentFailureKeepsEveryToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		id := f.mint(t, otherWallet, "HYDR0000OTHR")
		_, err := f.ledger.Transfer(ctx, otherWallet, buyerWallet, id)
		require.NoError(t, err)
	}
	f.accounts.FactoryLookupErr = errors.New("postgres down")

	credits, err := f.merger.BuyerView(ctx, f.buyer)
	require.NoError(t, err)
	require.Len(t, credits, 4)
	for _, c := range credits {
		assert.Equal(t, UnknownFactory, c.FactoryName)
	}
}

func TestMerger_OwnedViewRequiresWallet(t *testing.T) {
	f := newFixture(t)
	walletless, err := account.NewAccount("cert", "cert@example.com", account.RoleCertifier, "", "")
	require.NoError(t, err)

	_, err = f.merger.OwnedView(context.Background(), walletless)
	assert.ErrorIs(t, err, account.ErrMissingWallet{})
}

func TestMerger_RegulatorView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.mint(t, producerWallet, "HYDR8628QLA5")
	}
	f.mint(t, otherWallet, "HYDR0000OTHR")

	t.Run("paginated", func(t *testing.T) {
		view, err := f.merger.RegulatorView(ctx, ListQuery{Page: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(4), view.Total)
		assert.Equal(t, int64(2), view.Limit)
		assert.Equal(t, []uint64{3, 4}, creditIDs(view.Credits))
		assert.Equal(t, "Sunfuel Hydrogen", view.Credits[1].FactoryName)
		assert.NotNil(t, view.RecentTransactions)
	})

	t.Run("limit is capped", func(t *testing.T) {
		view, err := f.merger.RegulatorView(ctx, ListQuery{Page: 1, Limit: 50})
		require.NoError(t, err)
		assert.Equal(t, int64(3), view.Limit)
		assert.Len(t, view.Credits, 3)
	})

	t.Run("search text by factory name", func(t *testing.T) {
		view, err := f.merger.RegulatorView(ctx, ListQuery{Search: "sunfuel"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), view.Total)
		assert.Equal(t, []uint64{4}, creditIDs(view.Credits))
	})

	t.Run("factory filter total before pagination", func(t *testing.T) {
		view, err := f.merger.RegulatorView(ctx, ListQuery{FactoryID: "HYDR8628QLA5", Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), view.Total)
		assert.Len(t, view.Credits, 2)
	})

	t.Run("invalid status", func(t *testing.T) {
		_, err := f.merger.RegulatorView(ctx, ListQuery{Status: "burned"})
		assert.ErrorIs(t, err, token.ErrInvalidStatus)
	})

	t.Run("page past the end of a search", func(t *testing.T) {
		view, err := f.merger.RegulatorView(ctx, ListQuery{Page: 1<<62 + 1, Limit: 3, Search: "HYDR"})
		require.NoError(t, err)
		assert.Equal(t, int64(4), view.Total)
		assert.Empty(t, view.Credits)
	})

	t.Run("page past the end of the full list", func(t *testing.T) {
		view, err := f.merger.RegulatorView(ctx, ListQuery{Page: math.MaxInt64, Limit: 3})
		require.NoError(t, err)
		assert.Equal(t, int64(4), view.Total)
		assert.Empty(t, view.Credits)
	})

	t.Run("owner filter normalizes the address", func(t *testing.T) {
		view, err := f.merger.RegulatorView(ctx, ListQuery{Owner: strings.ToLower(otherWallet)})
		require.NoError(t, err)
		assert.Equal(t, []uint64{4}, creditIDs(view.Credits))
	})

	t.Run("malformed owner filter", func(t *testing.T) {
		_, err := f.merger.RegulatorView(ctx, ListQuery{Owner: "not-a-wallet"})
		assert.ErrorIs(t, err, account.ErrInvalidWallet)
	})
}

func TestPaginate(t *testing.T) {
	credits := make([]Credit, 5)
	for i := range credits {
		credits[i].ID = uint64(i + 1)
	}

	tests := []struct {
		name   string
		offset int64
		limit  int64
		want   []uint64
	}{
		{name: "first page", offset: 0, limit: 2, want: []uint64{1, 2}},
		{name: "tail", offset: 4, limit: 2, want: []uint64{5}},
		{name: "past the end", offset: 5, limit: 2, want: []uint64{}},
		{name: "negative offset", offset: -10, limit: 2, want: []uint64{}},
		{name: "huge limit", offset: 3, limit: math.MaxInt64, want: []uint64{4, 5}},
		{name: "saturated offset", offset: pageOffset(math.MaxInt64, 7), limit: 7, want: []uint64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, creditIDs(paginate(credits, tt.offset, tt.limit)))
		})
	}
}

func TestMerger_View(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mint(t, producerWallet, "HYDR8628QLA5")

	regulator, err := account.NewAccount("reg", "reg@example.com", account.RoleRegulator, "", "")
	require.NoError(t, err)

	for _, caller := range []*account.Account{f.producer, f.buyer, regulator} {
		view, err := f.merger.View(ctx, caller, ListQuery{})
		require.NoError(t, err, caller.Role)
		assert.Equal(t, caller.Role, view.Role)
	}

	_, err = f.merger.View(ctx, &account.Account{Role: "ADMIN"}, ListQuery{})
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestMerger_AdvancedSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	day := func(d int) time.Time { return time.Date(2026, 1, d, 12, 0, 0, 0, time.UTC) }
	for d := 1; d <= 6; d++ {
		current := day(d)
		f.ledger.SetClock(func() time.Time { return current })
		f.mint(t, producerWallet, "HYDR8628QLA5")
	}
	_, err := f.ledger.Retire(ctx, 3)
	require.NoError(t, err)

	from, to := day(2), day(5)
	result, err := f.merger.AdvancedSearch(ctx, SearchQuery{
		FactoryID: "HYDR8628QLA5",
		Status:    "active",
		From:      &from,
		To:        &to,
		Offset:    1,
		Limit:     2,
	})
	require.NoError(t, err)
	// days 2..5 minus the retired token 3
	assert.Equal(t, int64(3), result.TotalCount)
	assert.Equal(t, []uint64{4, 5}, creditIDs(result.Credits))

	result, err = f.merger.AdvancedSearch(ctx, SearchQuery{Offset: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(6), result.TotalCount)
	assert.Empty(t, result.Credits)

	_, err = f.merger.AdvancedSearch(ctx, SearchQuery{Owner: "0x123"})
	assert.ErrorIs(t, err, account.ErrInvalidWallet)
}

func TestMerger_Stats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		f.mint(t, producerWallet, "HYDR8628QLA5")
	}
	for _, id := range []uint64{2, 7} {
		_, err := f.ledger.Retire(ctx, id)
		require.NoError(t, err)
	}
	_, err := f.ledger.Transfer(ctx, producerWallet, buyerWallet, 1)
	require.NoError(t, err)

	stats, err := f.merger.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.TotalMinted)
	assert.Equal(t, int64(2), stats.TotalRetired)
	assert.Equal(t, int64(8), stats.TotalActive)
	assert.Equal(t, int64(1), stats.TotalTransferred)
	require.Len(t, stats.ByFactory, 1)
	assert.Equal(t, "Greenworks Electrolysis", stats.ByFactory[0].FactoryName)
	assert.Equal(t, int64(10), stats.ByFactory[0].Minted)
}

func TestMerger_Factories(t *testing.T) {
	f := newFixture(t)
	f.mint(t, producerWallet, "HYDR8628QLA5")
	f.mint(t, producerWallet, "HYDR8628QLA5")

	factories, err := f.merger.Factories(context.Background())
	require.NoError(t, err)
	require.Len(t, factories, 2)
	byID := map[string]Factory{}
	for _, fac := range factories {
		byID[fac.FactoryID] = fac
	}
	assert.Equal(t, 2, byID["HYDR8628QLA5"].TokensMinted)
	assert.Equal(t, 0, byID["HYDR0000OTHR"].TokensMinted)
}

func TestMerger_TokenDetails(t *testing.T) {
	f := newFixture(t)
	id := f.mint(t, producerWallet, "HYDR8628QLA5")

	credit, err := f.merger.TokenDetails(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Greenworks Electrolysis", credit.FactoryName)
	assert.Len(t, credit.History, 1)

	_, err = f.merger.TokenDetails(context.Background(), 999)
	assert.ErrorIs(t, err, token.ErrTokenNotFound{})
}

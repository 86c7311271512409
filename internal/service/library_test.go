package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mdouchement/padbank/internal/archive"
	"github.com/mdouchement/padbank/internal/blobstore"
	"github.com/mdouchement/padbank/internal/model"
	"github.com/mdouchement/padbank/internal/service"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBankOrdering(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	first, err := e.svc.CreateBank(ctx, "First", "")
	require.NoError(t, err)
	second, err := e.svc.CreateBank(ctx, "Second", "")
	require.NoError(t, err)
	assert.Equal(t, 0, first.SortOrder)
	assert.Equal(t, 1, second.SortOrder)

	banks, err := e.svc.ListBanks()
	require.NoError(t, err)
	require.Len(t, banks, 2)
	assert.Equal(t, first.ID, banks[0].ID)
	assert.Equal(t, second.ID, banks[1].ID)
}

func TestAddPad(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	bank, err := e.svc.CreateBank(ctx, "Bank", "")
	require.NoError(t, err)

	pad, err := e.svc.AddPad(ctx, bank.ID, model.Pad{Name: "full", Volume: 1}, tone(t, 1000), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, 1000.0, pad.EndTimeMs)
	assert.Equal(t, model.TriggerToggle, pad.TriggerMode)
	assert.Equal(t, model.PlaybackOnce, pad.PlaybackMode)
	assert.Equal(t, pad.ID, pad.AudioRef)
	assert.Equal(t, pad.ID, pad.ImageRef)

	_, err = e.svc.AddPad(ctx, bank.ID, model.Pad{Name: "too long", Volume: 1, EndTimeMs: 1500}, tone(t, 1000), nil)
	assert.True(t, errors.Is(err, model.ErrInvalidPad))
	assert.Equal(t, service.ClassInvalidPad, service.Cause(err))

	_, err = e.svc.AddPad(ctx, bank.ID, model.Pad{Name: "not audio", Volume: 1}, []byte("text"), nil)
	assert.True(t, errors.Is(err, model.ErrInvalidPad))

	_, err = e.svc.AddPad(ctx, "unknown", model.Pad{Name: "orphan", Volume: 1}, tone(t, 100), nil)
	assert.Equal(t, service.ClassNotFound, service.Cause(err))
}

func TestConcurrentAddPad(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	sample := tone(t, 200)

	bank, err := e.svc.CreateBank(ctx, "Bank", "")
	require.NoError(t, err)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.svc.AddPad(ctx, bank.ID, model.Pad{Name: "pad", Volume: 1}, sample, nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	stored, err := e.svc.FindBank(bank.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Pads, n)
}

func TestUpdatePad(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	bank, err := e.svc.CreateBank(ctx, "Bank", "")
	require.NoError(t, err)
	pad, err := e.svc.AddPad(ctx, bank.ID, model.Pad{Name: "pad", Volume: 1}, tone(t, 1000), nil)
	require.NoError(t, err)

	update := *pad
	update.Name = "renamed"
	update.StartTimeMs = 100
	update.AudioRef = "forged"
	updated, err := e.svc.UpdatePad(ctx, bank.ID, update)
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, pad.AudioRef, updated.AudioRef, "assets cannot be swapped")

	update.EndTimeMs = 2000
	_, err = e.svc.UpdatePad(ctx, bank.ID, update)
	assert.True(t, errors.Is(err, model.ErrInvalidPad))

	update.ID = "unknown"
	_, err = e.svc.UpdatePad(ctx, bank.ID, update)
	assert.True(t, errors.Is(err, service.ErrNotFound))
}

func TestDeletePadAndBankCascade(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	bank, err := e.svc.CreateBank(ctx, "Bank", "")
	require.NoError(t, err)
	a, err := e.svc.AddPad(ctx, bank.ID, model.Pad{Name: "a", Volume: 1}, tone(t, 100), []byte("image-a"))
	require.NoError(t, err)
	b, err := e.svc.AddPad(ctx, bank.ID, model.Pad{Name: "b", Volume: 1}, tone(t, 100), []byte("image-b"))
	require.NoError(t, err)

	quota, err := e.svc.Quota()
	require.NoError(t, err)
	assert.Equal(t, int64(14), quota.Usage)

	require.NoError(t, e.svc.DeletePad(ctx, bank.ID, a.ID))
	_, ok, err := e.svc.Blob(a.AudioRef, model.KindAudio)
	require.NoError(t, err)
	assert.False(t, ok)

	quota, err = e.svc.Quota()
	require.NoError(t, err)
	assert.Equal(t, int64(7), quota.Usage)

	require.NoError(t, e.svc.DeleteBank(ctx, bank.ID))
	_, ok, err = e.svc.Blob(b.ImageRef, model.KindImage)
	require.NoError(t, err)
	assert.False(t, ok)

	quota, err = e.svc.Quota()
	require.NoError(t, err)
	assert.Equal(t, int64(0), quota.Usage)

	_, err = e.svc.FindBank(bank.ID)
	assert.True(t, errors.Is(err, service.ErrNotFound))
}

func TestMovePad(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	from, err := e.svc.CreateBank(ctx, "From", "")
	require.NoError(t, err)
	to, err := e.svc.CreateBank(ctx, "To", "")
	require.NoError(t, err)
	pad, err := e.svc.AddPad(ctx, from.ID, model.Pad{Name: "a", Volume: 1}, tone(t, 100), nil)
	require.NoError(t, err)

	require.NoError(t, e.svc.MovePad(ctx, from.ID, pad.ID, to.ID))
	from, err = e.svc.FindBank(from.ID)
	require.NoError(t, err)
	to, err = e.svc.FindBank(to.ID)
	require.NoError(t, err)
	assert.Empty(t, from.Pads)
	require.Len(t, to.Pads, 1)
	assert.Equal(t, pad.AudioRef, to.Pads[0].AudioRef)

	// Locked imported banks keep their pads.
	to.Metadata = &model.BankMetadata{Password: true}
	to.IsAdminBank = true
	to.Transferable = false
	require.NoError(t, e.db.Save(to))

	err = e.svc.MovePad(ctx, to.ID, pad.ID, from.ID)
	assert.True(t, errors.Is(err, service.ErrNotTransferable))
}

func TestCanTransferFromBank(t *testing.T) {
	cases := []struct {
		name string
		bank model.Bank
		want bool
	}{
		{name: "plain local bank", bank: model.Bank{}, want: true},
		{name: "open metadata", bank: model.Bank{Metadata: &model.BankMetadata{}, Transferable: true}, want: true},
		{name: "locked metadata", bank: model.Bank{Metadata: &model.BankMetadata{}, Transferable: false}, want: false},
		{name: "admin bank", bank: model.Bank{IsAdminBank: true}, want: false},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, service.CanTransferFromBank(&c.bank), c.name)
	}
}

func TestAdaptiveTimeout(t *testing.T) {
	const mib = 1 << 20

	assert.Equal(t, 60*time.Second, service.AdaptiveTimeout(0))
	assert.Equal(t, 120*time.Second, service.AdaptiveTimeout(1))
	assert.Equal(t, 120*time.Second, service.AdaptiveTimeout(100*mib))
	assert.Equal(t, 180*time.Second, service.AdaptiveTimeout(100*mib+1))
	assert.Equal(t, 600*time.Second, service.AdaptiveTimeout(900*mib))
	assert.Equal(t, 600*time.Second, service.AdaptiveTimeout(10*1024*mib))
}

func TestCause(t *testing.T) {
	cases := map[service.Class]error{
		service.ClassInvalidFile:   &archive.FormatError{Reason: "x"},
		service.ClassDecryption:    &service.DecryptionError{Last: &archive.FormatError{Reason: "x"}},
		service.ClassLogin:         &service.DecryptionError{LoginRequired: true},
		service.ClassAccess:        errors.Wrap(&service.AccessDeniedError{BankID: "b"}, "import"),
		service.ClassTimeout:       &service.TimeoutError{Step: "decrypt"},
		service.ClassQuota:         &blobstore.QuotaExceededError{},
		service.ClassDuplicate:     &service.DuplicateImportError{},
		service.ClassNotExportable: &service.NotExportableError{},
		service.ClassNoPads:        service.ErrNoPads,
		service.ClassNotFound:      errors.Wrap(service.ErrNotFound, "bank"),
		service.ClassInternal:      errors.New("boom"),
	}

	for class, err := range cases {
		assert.Equal(t, class, service.Cause(err), class)
	}
	assert.Equal(t, service.Class(""), service.Cause(nil))
}

package service

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/mdouchement/padbank/internal/archive"
	"github.com/mdouchement/padbank/internal/audio"
	"github.com/mdouchement/padbank/internal/blobstore"
	"github.com/mdouchement/padbank/internal/model"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ImportOptions tunes an import.
type ImportOptions struct {
	// Filename is the name of the imported file, it may hold a bank identifier hint.
	Filename string
	Progress Progress
}

// An ImportResult describes an imported bank.
type ImportResult struct {
	Bank      *model.Bank
	Imported  int
	Skipped   int
	Encrypted bool
}

// importState is one stage of an import.
type importState string

const (
	stateLoading         importState = "loading"
	stateDecryptAttempt  importState = "decrypt attempt"
	stateManifestParse   importState = "manifest parse"
	stateMetadataResolve importState = "metadata resolve"
	stateDedupCheck      importState = "dedup check"
	stateBatchExtract    importState = "batch extract"
	stateComplete        importState = "complete"
	stateFailed          importState = "failed"
)

// extracted holds the assets read for one pad.
type extracted struct {
	record model.PadRecord
	audio  []byte
	image  []byte
}

// ImportBank restores a bank from an archive.
// A failed import leaves the library and the blob store untouched.
func (s *Service) ImportBank(ctx context.Context, data []byte, options ImportOptions) (result *ImportResult, err error) {
	progress := newTracker(options.Progress)
	timeout := s.timeout(int64(len(data)))
	state := func(st importState) {
		s.log.Debugf("import %s: %s", options.Filename, st)
	}

	var committed []blobstore.Item
	defer func() {
		if err == nil {
			state(stateComplete)
			return
		}

		state(stateFailed)
		s.log.Infof("import %s failed (%s): %v", options.Filename, Cause(err), err)
		s.release(committed)
	}()

	state(stateLoading)
	progress.report(0)

	// Decrypt & parse
	//
	state(stateDecryptAttempt)
	var container *archive.Container
	var encrypted bool
	err = runStep(ctx, "decrypt", timeout, func(ctx context.Context) (err error) {
		container, encrypted, err = s.unseal(ctx, data, options.Filename)
		return err
	})
	if err != nil {
		return nil, err
	}
	state(stateManifestParse)
	manifest := container.Manifest()
	progress.report(20)

	// Metadata
	//
	state(stateMetadataResolve)
	bank, err := s.resolve(ctx, container)
	if err != nil {
		return nil, err
	}
	progress.report(25)

	// Dedup
	//
	state(stateDedupCheck)
	if err = s.dedup(bank.SourceBankID); err != nil {
		return nil, err
	}
	progress.report(30)

	// Extraction
	//
	state(stateBatchExtract)
	total := len(manifest.Pads)
	skipped := 0
	for offset := 0; offset < total; offset += s.batchSize {
		end := offset + s.batchSize
		if end > total {
			end = total
		}

		var pads []model.Pad
		var items []blobstore.Item
		err = runStep(ctx, fmt.Sprintf("batch %d", offset/s.batchSize+1), timeout, func(ctx context.Context) error {
			assets, err := s.extractBatch(ctx, container, manifest.Pads[offset:end])
			if err != nil {
				return err
			}

			pads, items = s.prepare(assets)
			if len(items) == 0 {
				return nil
			}
			return s.blobs.StoreBatch(ctx, items)
		})
		if err != nil {
			return nil, err
		}

		committed = append(committed, items...)
		bank.Pads = append(bank.Pads, pads...)
		skipped += (end - offset) - len(pads)
		progress.span(30, 95, end, total)
	}

	if len(bank.Pads) == 0 {
		return nil, ErrNoPads
	}

	// Insertion
	//
	if err = s.insert(bank); err != nil {
		return nil, err
	}
	progress.report(100)

	s.log.Infof("imported bank %s (%s): %d pad(s), %d skipped", bank.ID, bank.Name, len(bank.Pads), skipped)
	return &ImportResult{
		Bank:      bank,
		Imported:  len(bank.Pads),
		Skipped:   skipped,
		Encrypted: encrypted,
	}, nil
}

// resolve builds the bank record from the manifest and the metadata,
// checking the access to admin banks.
func (s *Service) resolve(ctx context.Context, container *archive.Container) (*model.Bank, error) {
	manifest := container.Manifest()
	metadata, ok := container.Metadata()

	bank := &model.Bank{
		Name:         manifest.Name,
		DefaultColor: manifest.DefaultColor,
		Pads:         make([]model.Pad, 0, len(manifest.Pads)),
		SourceBankID: manifest.ID,
		Transferable: true,
		Exportable:   true,
	}
	if !ok {
		return bank, nil
	}

	m := *metadata
	bank.Metadata = &m
	bank.IsAdminBank = m.Password
	bank.Transferable = m.Transferable
	bank.Exportable = m.Exportable
	if m.Title != "" {
		bank.Name = m.Title
	}
	if m.Color != "" {
		bank.DefaultColor = m.Color
	}
	if !m.DatabaseBacked() {
		return bank, nil
	}

	bank.SourceBankID = m.BankID

	user, authed := s.currentUser(ctx)
	if !authed || s.grants == nil {
		return nil, &AccessDeniedError{BankID: m.BankID, UserID: user.ID}
	}
	granted, err := s.grants.HasAccess(ctx, user.ID, m.BankID)
	if err != nil {
		return nil, errors.Wrap(err, "access check")
	}
	if !granted {
		return nil, &AccessDeniedError{BankID: m.BankID, UserID: user.ID}
	}

	if s.registry == nil {
		return bank, nil
	}
	info, err := s.registry.Lookup(ctx, m.BankID)
	if err != nil {
		// The registry only refines the display fields.
		s.log.Errorf("registry lookup %s: %v", m.BankID, err)
		return bank, nil
	}
	if info != nil {
		if info.Title != "" {
			bank.Name = info.Title
			bank.Metadata.Title = info.Title
		}
		if info.Description != "" {
			bank.Metadata.Description = info.Description
		}
		if info.Color != "" {
			bank.DefaultColor = info.Color
			bank.Metadata.Color = info.Color
		}
	}
	return bank, nil
}

// dedup fails when a local bank already has the origin identity.
func (s *Service) dedup(origin string) error {
	if origin == "" {
		return nil
	}

	banks, err := s.db.ListBanks()
	if err != nil {
		return err
	}
	for _, bank := range banks {
		for _, id := range bank.OriginIDs() {
			if id == origin {
				return &DuplicateImportError{OriginID: origin, BankID: bank.ID, Name: bank.Name}
			}
		}
	}
	return nil
}

// insert saves an imported bank after the last bank. The origin identity is
// checked again since another import may have inserted it meanwhile.
func (s *Service) insert(bank *model.Bank) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.dedup(bank.SourceBankID); err != nil {
		return err
	}
	if bank.SortOrder, err = s.nextSortOrder(); err != nil {
		return err
	}
	return s.db.Save(bank)
}

// extractBatch reads the assets of records concurrently.
// Pads whose audio cannot be read are left nil.
func (s *Service) extractBatch(ctx context.Context, container *archive.Container, records []model.PadRecord) ([]*extracted, error) {
	assets := make([]*extracted, len(records))

	g, ctx := errgroup.WithContext(ctx)
	for i := range records {
		i := i
		g.Go(func() error {
			record := records[i]
			if record.Audio == "" || !container.HasAsset(record.Audio) {
				s.log.Debugf("pad %s (%s): no audio", record.ID, record.Name)
				return nil
			}

			sample, err := container.Asset(ctx, record.Audio)
			if err != nil || len(sample) == 0 {
				if cerr := ctx.Err(); cerr != nil {
					return cerr
				}
				s.log.Debugf("pad %s (%s): unreadable audio: %v", record.ID, record.Name, err)
				return nil
			}

			x := &extracted{
				record: record,
				audio:  sample,
			}
			if record.Image != "" && container.HasAsset(record.Image) {
				// A pad keeps its sound without its image.
				if image, err := container.Asset(ctx, record.Image); err == nil {
					x.image = image
				} else if cerr := ctx.Err(); cerr != nil {
					return cerr
				}
			}

			assets[i] = x
			return nil
		})
	}

	return assets, g.Wait()
}

// prepare assigns local identifiers to the extracted pads.
func (s *Service) prepare(assets []*extracted) ([]model.Pad, []blobstore.Item) {
	pads := make([]model.Pad, 0, len(assets))
	items := make([]blobstore.Item, 0, 2*len(assets))

	for _, x := range assets {
		if x == nil {
			continue
		}

		id := uuid.Must(uuid.NewV4()).String()
		pad := x.record.Pad(id)
		if pad.EndTimeMs <= pad.StartTimeMs {
			if duration, err := audio.DurationMs(x.audio); err == nil {
				pad.StartTimeMs, pad.EndTimeMs = 0, duration
			}
		}
		pad.Normalize()

		pad.AudioRef = id
		items = append(items, blobstore.Item{ID: id, Data: x.audio, Kind: model.KindAudio})
		if len(x.image) > 0 {
			pad.ImageRef = id
			items = append(items, blobstore.Item{ID: id, Data: x.image, Kind: model.KindImage})
		}
		pads = append(pads, pad)
	}
	return pads, items
}

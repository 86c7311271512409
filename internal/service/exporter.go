package service

import (
	"context"
	"math"
	"time"

	"github.com/mdouchement/padbank/internal/archive"
	"github.com/mdouchement/padbank/internal/audio"
	"github.com/mdouchement/padbank/internal/model"
	"github.com/mdouchement/padbank/internal/seal"
	"github.com/mdouchement/padbank/internal/xpath"
	"github.com/pkg/errors"
)

// An Export is an assembled archive.
type Export struct {
	Filename  string
	Data      []byte
	Encrypted bool
	// BankID is the registry identifier of database backed admin exports.
	BankID string
	// Trimmed counts the pads re-encoded to their play range.
	Trimmed int
	// Fallbacks counts the lossy pads written as WAV.
	Fallbacks int
	// Reused counts the pads exported untrimmed after a transcode failure.
	Reused int
}

// AdminExportOptions selects the protection of an admin export.
type AdminExportOptions struct {
	// AddToDatabase registers the bank in the admin registry and seals it with the registry key.
	AddToDatabase bool
	// AllowExport lets recipients export the bank again. Ignored with AddToDatabase.
	AllowExport bool
	Title       string
	Description string
	Color       string
}

// ExportBank assembles a plain archive of a bank.
func (s *Service) ExportBank(ctx context.Context, bankID string, progress Progress) (*Export, error) {
	bank, err := s.FindBank(bankID)
	if err != nil {
		return nil, err
	}
	if !CanExportBank(bank) {
		return nil, &NotExportableError{BankID: bank.ID}
	}

	t := newTracker(progress)
	t.report(0)

	export := &Export{
		Filename: xpath.ArchiveName(bank.Name, ""),
	}
	manifest, assets, err := s.collect(ctx, bank, export, t)
	if err != nil {
		return nil, err
	}

	var metadata *model.BankMetadata
	if bank.Metadata != nil {
		m := *bank.Metadata
		metadata = &m
	}

	if export.Data, err = archive.Assemble(manifest, metadata, assets); err != nil {
		return nil, err
	}
	t.report(100)

	s.log.Infof("exported bank %s (%s): %d trimmed, %d fallback(s), %d reused", bank.ID, bank.Name, export.Trimmed, export.Fallbacks, export.Reused)
	return export, nil
}

// ExportAdminBank assembles a protected archive of a bank.
// Exactly one protection applies:
//
//	AddToDatabase                 sealed with the registry key, not re-exportable
//	!AddToDatabase, !AllowExport  sealed with the shared password, not re-exportable
//	!AddToDatabase, AllowExport   plain and re-exportable
func (s *Service) ExportAdminBank(ctx context.Context, bankID string, options AdminExportOptions, progress Progress) (*Export, error) {
	bank, err := s.FindBank(bankID)
	if err != nil {
		return nil, err
	}
	if !CanExportBank(bank) {
		return nil, &NotExportableError{BankID: bank.ID}
	}

	metadata := &model.BankMetadata{
		Transferable: true,
		Title:        options.Title,
		Description:  options.Description,
		Color:        options.Color,
	}
	if metadata.Title == "" {
		metadata.Title = bank.Name
	}
	if metadata.Color == "" {
		metadata.Color = bank.DefaultColor
	}

	if options.AddToDatabase {
		if _, authed := s.currentUser(ctx); !authed {
			return nil, ErrLoginRequired
		}
	}

	export := &Export{}
	t := newTracker(progress)
	t.report(0)

	manifest, assets, err := s.collect(ctx, bank, export, t)
	if err != nil {
		return nil, err
	}

	var key *seal.Key
	switch {
	case options.AddToDatabase:
		user, authed := s.currentUser(ctx)
		if !authed {
			return nil, ErrLoginRequired
		}
		if s.registry == nil {
			return nil, errors.New("admin registry is not configured")
		}

		registration, err := s.registry.Create(ctx, user.ID, metadata.Title, metadata.Description, metadata.Color)
		if err != nil {
			return nil, errors.Wrap(err, "could not register admin bank")
		}

		metadata.Password = true
		metadata.Exportable = false
		metadata.BankID = registration.ID
		key = &registration.Key
		export.BankID = registration.ID
		export.Filename = xpath.ArchiveName(bank.Name, registration.ID)
	case !options.AllowExport:
		metadata.Password = true
		metadata.Exportable = false
		shared := s.shared()
		key = &shared
		export.Filename = xpath.ArchiveName(bank.Name, "")
	default:
		metadata.Password = false
		metadata.Exportable = true
		export.Filename = xpath.ArchiveName(bank.Name, "")
	}

	if export.BankID != "" {
		manifest.ID = export.BankID
	}

	data, err := archive.Assemble(manifest, metadata, assets)
	if err != nil {
		return nil, err
	}
	t.report(90)

	if key != nil {
		if data, err = seal.Encrypt(data, *key); err != nil {
			return nil, err
		}
		export.Encrypted = true
	}
	export.Data = data
	t.report(100)

	s.log.Infof("admin exported bank %s (%s) encrypted=%t registry=%s", bank.ID, bank.Name, export.Encrypted, export.BankID)
	return export, nil
}

// collect builds the manifest and the assets of bank.
// Audio takes 0-60% of the progress and images 60-80%.
func (s *Service) collect(ctx context.Context, bank *model.Bank, export *Export, t *tracker) (*model.Manifest, []archive.Asset, error) {
	manifest := &model.Manifest{
		Version:      model.ManifestVersion,
		ExportedAt:   time.Now().UTC(),
		ID:           bank.OriginID(),
		Name:         bank.Name,
		DefaultColor: bank.DefaultColor,
		CreatedAt:    bank.CreatedAt,
		SortOrder:    bank.SortOrder,
		Pads:         make([]model.PadRecord, 0, len(bank.Pads)),
	}
	assets := make([]archive.Asset, 0, 2*len(bank.Pads))

	for i, pad := range bank.Pads {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		sample, ok, err := s.blobs.Get(pad.AudioRef, model.KindAudio)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			s.log.Infof("pad %s (%s) has no audio, skipped", pad.ID, pad.Name)
			t.span(0, 60, i+1, len(bank.Pads))
			continue
		}

		record := model.NewPadRecord(pad)
		sample, record = s.trim(ctx, sample, record, export)
		record.Audio = archive.AudioPath(pad.ID)

		manifest.Pads = append(manifest.Pads, record)
		assets = append(assets, archive.Asset{Path: record.Audio, Data: sample})
		t.span(0, 60, i+1, len(bank.Pads))
	}

	for i := range manifest.Pads {
		record := &manifest.Pads[i]
		pad := bank.Pads[bank.Pad(record.ID)]
		if pad.ImageRef != "" {
			image, ok, err := s.blobs.Get(pad.ImageRef, model.KindImage)
			if err != nil {
				return nil, nil, err
			}
			if ok {
				record.Image = archive.ImagePath(pad.ID)
				assets = append(assets, archive.Asset{Path: record.Image, Data: image})
			}
		}
		t.span(60, 80, i+1, len(manifest.Pads))
	}
	t.report(80)

	return manifest, assets, nil
}

// trim re-encodes sample to the play range of record when it differs enough
// from the actual duration. On any failure the original sample and timings are kept.
func (s *Service) trim(ctx context.Context, sample []byte, record model.PadRecord, export *Export) ([]byte, model.PadRecord) {
	duration, err := audio.DurationMs(sample)
	if err != nil {
		s.log.Debugf("pad %s: cannot read duration: %v", record.ID, err)
		export.Reused++
		return sample, record
	}
	if !audio.NeedsTrim(record.StartTimeMs, record.EndTimeMs, duration) {
		return sample, record
	}

	result, err := s.trimmer.Trim(ctx, sample, record.StartTimeMs, math.Min(record.EndTimeMs, duration), audio.FormatUnknown)
	if err != nil {
		s.log.Infof("pad %s: trim failed, exporting the original: %v", record.ID, err)
		export.Reused++
		return sample, record
	}

	record.StartTimeMs = 0
	record.EndTimeMs = result.DurationMs
	pad := record.Pad(record.ID)
	model.FitFades(&pad, result.DurationMs)
	record.FadeInMs, record.FadeOutMs = pad.FadeInMs, pad.FadeOutMs

	export.Trimmed++
	if result.Fallback {
		export.Fallbacks++
	}
	return result.Data, record
}

package service

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/mdouchement/padbank/internal/audio"
	"github.com/mdouchement/padbank/internal/blobstore"
	"github.com/mdouchement/padbank/internal/model"
	"github.com/pkg/errors"
)

// Quota is the image storage usage.
type Quota struct {
	Usage   int64 `json:"usage"`
	Ceiling int64 `json:"ceiling"`
}

// ListBanks returns the banks ordered by sort order.
func (s *Service) ListBanks() ([]*model.Bank, error) {
	return s.db.ListBanks()
}

// FindBank returns the bank identified by id.
func (s *Service) FindBank(id string) (*model.Bank, error) {
	bank, err := s.db.FindBank(id)
	if err != nil {
		if s.db.IsNotFound(err) {
			return nil, errors.Wrapf(ErrNotFound, "bank %s", id)
		}
		return nil, err
	}
	return bank, nil
}

// CreateBank creates an empty bank placed after the existing ones.
func (s *Service) CreateBank(ctx context.Context, name, color string) (*model.Bank, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, err := s.nextSortOrder()
	if err != nil {
		return nil, err
	}

	bank := &model.Bank{
		Name:         name,
		DefaultColor: color,
		Pads:         []model.Pad{},
		SortOrder:    order,
		Transferable: true,
		Exportable:   true,
	}
	if err = s.db.Save(bank); err != nil {
		return nil, err
	}

	s.log.Infof("bank %s (%s) created", bank.ID, bank.Name)
	return bank, nil
}

// AddPad adds pad to the bank with its audio and optional image.
// A zero end time plays the whole sample.
func (s *Service) AddPad(ctx context.Context, bankID string, pad model.Pad, sample, image []byte) (*model.Pad, error) {
	if _, err := s.FindBank(bankID); err != nil {
		return nil, err
	}

	duration, err := audio.DurationMs(sample)
	if err != nil {
		return nil, errors.Wrapf(model.ErrInvalidPad, "audio: %v", err)
	}

	pad.ID = uuid.Must(uuid.NewV4()).String()
	if pad.EndTimeMs == 0 {
		pad.EndTimeMs = duration
	}
	if pad.TriggerMode == "" {
		pad.TriggerMode = model.TriggerToggle
	}
	if pad.PlaybackMode == "" {
		pad.PlaybackMode = model.PlaybackOnce
	}
	if err = pad.Validate(duration); err != nil {
		return nil, err
	}

	items := []blobstore.Item{{ID: pad.ID, Data: sample, Kind: model.KindAudio}}
	pad.AudioRef = pad.ID
	if len(image) > 0 {
		items = append(items, blobstore.Item{ID: pad.ID, Data: image, Kind: model.KindImage})
		pad.ImageRef = pad.ID
	}
	if err = s.blobs.StoreBatch(ctx, items); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The bank may have changed while the assets were stored.
	bank, err := s.FindBank(bankID)
	if err == nil {
		bank.Pads = append(bank.Pads, pad)
		err = s.db.Save(bank)
	}
	if err != nil {
		s.release(items)
		return nil, err
	}
	return &pad, nil
}

// UpdatePad replaces the configuration of a pad. Its assets are kept.
func (s *Service) UpdatePad(ctx context.Context, bankID string, pad model.Pad) (*model.Pad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bank, err := s.FindBank(bankID)
	if err != nil {
		return nil, err
	}

	i := bank.Pad(pad.ID)
	if i < 0 {
		return nil, errors.Wrapf(ErrNotFound, "pad %s", pad.ID)
	}
	pad.AudioRef = bank.Pads[i].AudioRef
	pad.ImageRef = bank.Pads[i].ImageRef

	var duration float64
	if sample, ok, err := s.blobs.Get(pad.AudioRef, model.KindAudio); err != nil {
		return nil, err
	} else if ok {
		// An undecodable sample only skips the upper bound check.
		duration, _ = audio.DurationMs(sample)
	}
	if err = pad.Validate(duration); err != nil {
		return nil, err
	}

	bank.Pads[i] = pad
	if err = s.db.Save(bank); err != nil {
		return nil, err
	}
	return &pad, nil
}

// DeletePad removes a pad and its assets.
func (s *Service) DeletePad(ctx context.Context, bankID, padID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bank, err := s.FindBank(bankID)
	if err != nil {
		return err
	}

	i := bank.Pad(padID)
	if i < 0 {
		return errors.Wrapf(ErrNotFound, "pad %s", padID)
	}
	pad := bank.Pads[i]
	bank.Pads = append(bank.Pads[:i], bank.Pads[i+1:]...)

	if err = s.db.Save(bank); err != nil {
		return err
	}
	return s.deleteAssets(pad)
}

// MovePad moves a pad and its assets references to another bank.
func (s *Service) MovePad(ctx context.Context, fromBankID, padID, toBankID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, err := s.FindBank(fromBankID)
	if err != nil {
		return err
	}
	if !CanTransferFromBank(from) {
		return errors.Wrapf(ErrNotTransferable, "bank %s", from.ID)
	}
	to, err := s.FindBank(toBankID)
	if err != nil {
		return err
	}

	i := from.Pad(padID)
	if i < 0 {
		return errors.Wrapf(ErrNotFound, "pad %s", padID)
	}
	pad := from.Pads[i]
	pad.Position = len(to.Pads)
	from.Pads = append(from.Pads[:i], from.Pads[i+1:]...)
	to.Pads = append(to.Pads, pad)

	if err = s.db.Save(to); err != nil {
		return err
	}
	return s.db.Save(from)
}

// DeleteBank removes a bank and the assets of its pads.
func (s *Service) DeleteBank(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bank, err := s.FindBank(id)
	if err != nil {
		return err
	}

	for _, pad := range bank.Pads {
		if err = s.deleteAssets(pad); err != nil {
			return err
		}
	}

	if err = s.db.DeleteBank(bank.ID); err != nil {
		return err
	}
	s.log.Infof("bank %s (%s) deleted", bank.ID, bank.Name)
	return nil
}

// Quota returns the image storage usage.
func (s *Service) Quota() (Quota, error) {
	usage, err := s.blobs.Usage()
	return Quota{Usage: usage, Ceiling: s.blobs.Ceiling()}, err
}

// Blob returns the bytes of a stored asset.
func (s *Service) Blob(id string, kind model.Kind) ([]byte, bool, error) {
	if !kind.Valid() {
		return nil, false, errors.Wrapf(ErrNotFound, "kind %s", kind)
	}
	return s.blobs.Get(id, kind)
}

// CanTransferFromBank reports whether pads may be moved out of bank.
// Plain local banks always allow it.
func CanTransferFromBank(bank *model.Bank) bool {
	if bank.Metadata == nil && !bank.IsAdminBank {
		return true
	}
	return bank.Transferable
}

// CanExportBank reports whether bank may be exported.
func CanExportBank(bank *model.Bank) bool {
	if bank.Metadata == nil && !bank.IsAdminBank {
		return true
	}
	return bank.Exportable
}

func (s *Service) nextSortOrder() (int, error) {
	banks, err := s.db.ListBanks()
	if err != nil {
		return 0, err
	}

	order := 0
	for _, bank := range banks {
		if bank.SortOrder >= order {
			order = bank.SortOrder + 1
		}
	}
	return order, nil
}

func (s *Service) deleteAssets(pad model.Pad) error {
	if pad.AudioRef != "" {
		if err := s.blobs.Delete(pad.AudioRef, model.KindAudio); err != nil {
			return err
		}
	}
	if pad.ImageRef != "" {
		if err := s.blobs.Delete(pad.ImageRef, model.KindImage); err != nil {
			return err
		}
	}
	return nil
}

// release deletes blobs committed by an operation that failed afterwards.
func (s *Service) release(items []blobstore.Item) {
	for _, item := range items {
		if err := s.blobs.Delete(item.ID, item.Kind); err != nil {
			s.log.Errorf("could not release %s: %v", item.Key(), err)
		}
	}
}

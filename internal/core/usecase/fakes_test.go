package usecase

import (
	"context"
	"time"

	"permit-enrichment-service/internal/core/domain"
	"permit-enrichment-service/internal/core/port"
)

// Фейки портов хранилища и реестров для тестов use case'ов.

type fakePermitStorage struct {
	permits []domain.PermitRecord

	selectErr error
	setKeyErr error
	markErr   error

	keys       map[string]domain.ParcelKey
	rejections map[string]domain.RejectionReason
}

func newFakePermitStorage(permits ...domain.PermitRecord) *fakePermitStorage {
	return &fakePermitStorage{
		permits:    permits,
		keys:       make(map[string]domain.ParcelKey),
		rejections: make(map[string]domain.RejectionReason),
	}
}

func (f *fakePermitStorage) GetPermitsMissingParcelKey(_ context.Context, limit int) ([]domain.PermitRecord, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	if limit > len(f.permits) {
		limit = len(f.permits)
	}
	return f.permits[:limit], nil
}

func (f *fakePermitStorage) SetParcelKey(_ context.Context, permitNumber string, key domain.ParcelKey) error {
	if f.setKeyErr != nil {
		return f.setKeyErr
	}
	if _, exists := f.keys[permitNumber]; !exists {
		f.keys[permitNumber] = key
	}
	return nil
}

func (f *fakePermitStorage) MarkDerivationRejected(_ context.Context, permitNumber string, reason domain.RejectionReason) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.rejections[permitNumber] = reason
	return nil
}

type fakePropertyStorage struct {
	records map[domain.ParcelKey]domain.PropertyRecord
	// order задает порядок выдачи GetMissingOrStale
	order []domain.ParcelKey

	selectErr error
	ensureErr error
	saveErr   error

	saved []domain.PropertyRecord
}

func newFakePropertyStorage(records ...domain.PropertyRecord) *fakePropertyStorage {
	f := &fakePropertyStorage{records: make(map[domain.ParcelKey]domain.PropertyRecord)}
	for _, record := range records {
		f.records[record.ParcelKey] = record
		f.order = append(f.order, record.ParcelKey)
	}
	return f
}

func (f *fakePropertyStorage) EnsureExists(_ context.Context, key domain.ParcelKey, address string) error {
	if f.ensureErr != nil {
		return f.ensureErr
	}
	if _, exists := f.records[key]; !exists {
		f.records[key] = domain.NewPropertyRecord(key, address)
		f.order = append(f.order, key)
	}
	return nil
}

func (f *fakePropertyStorage) GetMissingOrStale(_ context.Context, source domain.SourceID, cutoff time.Time, limit int) ([]domain.PropertyRecord, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	var out []domain.PropertyRecord
	for _, key := range f.order {
		if len(out) >= limit {
			break
		}
		record := f.records[key]
		mark, enriched := record.EnrichedAt[source]
		if !enriched || mark.Before(cutoff) {
			out = append(out, record.Clone())
		}
	}
	return out, nil
}

func (f *fakePropertyStorage) Save(_ context.Context, record domain.PropertyRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.records[record.ParcelKey] = record
	f.saved = append(f.saved, record)
	return nil
}

// fakeRegistrySource отдает заранее заданный исход на каждый ключ.
type fakeRegistrySource struct {
	id      domain.SourceID
	results map[domain.ParcelKey]*domain.RegistryResult
	errs    map[domain.ParcelKey]error

	fetched []domain.ParcelKey
}

func newFakeRegistrySource(id domain.SourceID) *fakeRegistrySource {
	return &fakeRegistrySource{
		id:      id,
		results: make(map[domain.ParcelKey]*domain.RegistryResult),
		errs:    make(map[domain.ParcelKey]error),
	}
}

func (f *fakeRegistrySource) SourceID() domain.SourceID { return f.id }

func (f *fakeRegistrySource) Fetch(_ context.Context, key domain.ParcelKey) (*domain.RegistryResult, error) {
	f.fetched = append(f.fetched, key)
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	if result := f.results[key]; result != nil {
		return result, nil
	}
	return &domain.RegistryResult{}, nil
}

type fakeRunReporter struct {
	summaries []domain.RunSummary
	saveErr   error
}

func (f *fakeRunReporter) SaveRunSummary(_ context.Context, summary domain.RunSummary) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.summaries = append(f.summaries, summary)
	return nil
}

// Статические проверки соответствия портам.
var (
	_ port.PermitStoragePort   = (*fakePermitStorage)(nil)
	_ port.PropertyStoragePort = (*fakePropertyStorage)(nil)
	_ port.RegistrySourcePort  = (*fakeRegistrySource)(nil)
	_ port.RunReporterPort     = (*fakeRunReporter)(nil)
)

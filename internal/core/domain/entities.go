package domain

import (
	"fmt"
	"time"
)

// SourceID — идентификатор внешнего реестра, из которого пришли данные.
type SourceID string

const (
	// SourcePluto — городской кадастровый датасет (PLUTO): владелец,
	// характеристики здания, оценочная стоимость.
	SourcePluto SourceID = "pluto"
	// SourceTaxRoll — налоговый реестр DOF: владелец по налоговой ведомости,
	// независимая оценка стоимости.
	SourceTaxRoll SourceID = "taxroll"
	// SourceAcris — реестр сделок ACRIS: история продаж участка.
	SourceAcris SourceID = "acris"
	// SourceHPD — жилищный реестр HPD: регистрация здания и владелец по ней.
	SourceHPD SourceID = "hpd"
	// SourceViolations — реестр нарушений DOB.
	SourceViolations SourceID = "dob_violations"
)

// EnrichmentSourceOrder — фиксированный порядок обхода источников в рамках
// одного запуска. Обогащение идет строго после выведения ключей, поэтому
// порядок здесь касается только самих источников.
var EnrichmentSourceOrder = []SourceID{
	SourcePluto,
	SourceTaxRoll,
	SourceHPD,
	SourceAcris,
	SourceViolations,
}

// PermitContact — контакт, наскрапленный со страницы разрешения.
type PermitContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// PermitRecord — одно поданное разрешение. Создается скрапером один раз;
// ParcelKey заполняется конвейером однократно и не пересчитывается, пока
// он есть (идемпотентное заполнение, не перезапись).
type PermitRecord struct {
	PermitNumber string
	Address      string
	BlockRaw     string
	LotRaw       string
	ParcelKey    *ParcelKey
	Contacts     []PermitContact
	ScrapedAt    time.Time
}

// BoroughHint возвращает подсказку кода боро: первый символ номера
// разрешения (номера DOB начинаются с цифры боро).
func (p PermitRecord) BoroughHint() string {
	if p.PermitNumber == "" {
		return ""
	}
	return p.PermitNumber[:1]
}

// FieldSet — набор именованных полей, который источник вернул для одного
// участка. Ключи — канонические имена полей (см. пакет constants).
type FieldSet map[string]string

// RegistryResult — результат обращения к реестру. Пустой Rows — нормальный
// исход: участок законно отсутствует в данном реестре. Ambiguous означает,
// что источник, от которого ожидается одна строка, вернул несколько; клиент
// не выбирает первую молча — решение принимает оркестратор.
type RegistryResult struct {
	Rows      []FieldSet
	Ambiguous bool
}

// Empty сообщает, что реестр не нашел участок.
func (r *RegistryResult) Empty() bool { return len(r.Rows) == 0 }

// TransientError — временный сбой реестра (сеть, таймаут, rate limit, 5xx).
// Не прерывает обработку остальных участков: запись останется в рабочем
// наборе и будет повторена следующим запуском.
type TransientError struct {
	Source SourceID
	Err    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure from registry %s: %v", e.Source, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PropertyRecord — один физический участок, ключ — ParcelKey.
//
// Fields хранит значения по каноническим именам плюс значения несогласных
// источников под квалифицированными именами вида "owner_name@taxroll".
// Origins запоминает, какой источник записал каноническое значение.
// EnrichedAt — отметка последнего успешного прохода каждого источника;
// именно она образует предикат "missing or stale".
type PropertyRecord struct {
	ParcelKey  ParcelKey
	Address    string
	Fields     map[string]string
	Origins    map[string]SourceID
	EnrichedAt map[SourceID]time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewPropertyRecord создает пустую запись участка.
func NewPropertyRecord(key ParcelKey, address string) PropertyRecord {
	now := time.Now().UTC()
	return PropertyRecord{
		ParcelKey:  key,
		Address:    address,
		Fields:     make(map[string]string),
		Origins:    make(map[string]SourceID),
		EnrichedAt: make(map[SourceID]time.Time),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Clone возвращает глубокую копию записи. Реконсиляция работает на копии,
// чтобы запись применялась как единое целое и исходная не мутировала.
func (p PropertyRecord) Clone() PropertyRecord {
	out := p
	out.Fields = make(map[string]string, len(p.Fields))
	for k, v := range p.Fields {
		out.Fields[k] = v
	}
	out.Origins = make(map[string]SourceID, len(p.Origins))
	for k, v := range p.Origins {
		out.Origins[k] = v
	}
	out.EnrichedAt = make(map[SourceID]time.Time, len(p.EnrichedAt))
	for k, v := range p.EnrichedAt {
		out.EnrichedAt[k] = v
	}
	return out
}

package domain

import (
	"strings"
)

// PrecedencePolicy задает для отдельных числовых полей явный порядок
// старшинства источников (первый — самый приоритетный). Поля без записи в
// политике живут по правилу "каноническое значение держит первый записавший".
// Политика приходит из конфигурации, а не выводится в точке вызова.
type PrecedencePolicy map[string][]SourceID

// rank возвращает позицию источника в порядке старшинства поля
// или -1, если для поля порядок не задан либо источник в него не входит.
func (p PrecedencePolicy) rank(field string, source SourceID) int {
	for i, s := range p[field] {
		if s == source {
			return i
		}
	}
	return -1
}

// QualifiedField — имя поля, квалифицированное источником. Под такими
// именами сосуществуют значения несогласных источников: до четырех
// параллельных полей владельца — это устройство модели, а не дефект.
func QualifiedField(field string, source SourceID) string {
	return field + "@" + string(source)
}

// Reconcile вливает FieldSet источника в запись участка. Политика на каждое
// поле независимо:
//
//   - пустое входящее значение пропускается: заполненное поле никогда не
//     затирается пустым значением более позднего прохода;
//   - каноническое поле пусто — значение принимается, источник записывается
//     в Origins;
//   - каноническое поле писал тот же источник — значение перезаписывается
//     (источник обновляет собственный прежний вклад);
//   - каноническое поле писал другой источник — значение кладется под
//     квалифицированным именем, каноническое не трогается. Исключение:
//     если поле есть в политике старшинства и входящий источник старше
//     текущего владельца, старое значение понижается в свой
//     квалифицированный слот, а входящее занимает каноническое. В обоих
//     случаях ни одно значение не теряется.
//
// Возвращается всегда полная запись: вход не мутирует, результат — копия,
// примененная как единое целое.
func Reconcile(existing PropertyRecord, incoming FieldSet, source SourceID, precedence PrecedencePolicy) PropertyRecord {
	out := existing.Clone()

	for field, value := range incoming {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		current, populated := out.Fields[field]
		if !populated || current == "" {
			out.Fields[field] = value
			out.Origins[field] = source
			continue
		}

		origin := out.Origins[field]
		if origin == source {
			out.Fields[field] = value
			continue
		}

		incomingRank := precedence.rank(field, source)
		originRank := precedence.rank(field, origin)
		if incomingRank >= 0 && (originRank < 0 || incomingRank < originRank) {
			// Входящий источник старше по политике: текущее значение
			// переезжает в свой квалифицированный слот, не теряясь.
			out.Fields[QualifiedField(field, origin)] = current
			out.Fields[field] = value
			out.Origins[field] = source
			continue
		}

		out.Fields[QualifiedField(field, source)] = value
	}

	return out
}

package constants

// Канонические имена полей записи участка. Маппер каждого источника
// переводит свою схему в эти имена; реконсилятор оперирует только ими.
const (
	FieldOwnerName       = "owner_name"
	FieldAssessedTotal   = "assessed_total"
	FieldAssessedLand    = "assessed_land"
	FieldYearBuilt       = "year_built"
	FieldNumFloors       = "num_floors"
	FieldUnitsRes        = "units_res"
	FieldBldgClass       = "bldg_class"
	FieldZoning          = "zoning"
	FieldLandUse         = "land_use"
	FieldLotArea         = "lot_area"
	FieldLastSaleDate    = "last_sale_date"
	FieldLastSalePrice   = "last_sale_price"
	FieldTotalViolations = "total_violations"
	FieldOpenViolations  = "open_violations"
	FieldRegistrationID  = "registration_id"
)

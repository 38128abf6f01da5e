package repository

// CounterEntity is a named persisted running counter. Sale numbers are
// allocated from the "sale_number" row under a row lock inside the sale
// transaction, so a rolled-back sale also rolls the counter back.
type CounterEntity struct {
	Name  string `db:"name"  gorm:"primaryKey;column:name"`
	Value int64  `db:"value" gorm:"column:value;not null;default:0"`
}

func (CounterEntity) TableName() string {
	return "counters"
}

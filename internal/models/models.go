package models

type User struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username string `gorm:"unique;not null"          json:"username"`
	Password string `gorm:"not null"                 json:"-"`
	Nome     string `gorm:"column:nome"              json:"nome,omitempty"`
}

func (User) TableName() string { return "eancodigodebarras_users" }

type Product struct {
	SKU          string `gorm:"column:sku;primaryKey"          json:"sku"`
	Descricao    string `gorm:"column:descricao;not null"      json:"descricao"`
	CodigoBarras string `gorm:"column:codigo_barras;not null"  json:"codigo_barras"`
}

func (Product) TableName() string { return "eancodigodebarras_produtos" }

func All() []any {
	return []any{&User{}, &Product{}}
}

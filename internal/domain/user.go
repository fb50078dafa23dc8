package domain

// UserProfile carries the minimal identity fields the consultation flow
// reads: the stable login id used for addressing and a display name for
// notifications. Account management itself lives in another service.
type UserProfile struct {
	UserID   int64  `json:"user_id"`
	LoginID  string `json:"login_id"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
}

// UserModel is the GORM model for the users table. Only the columns this
// service reads are mapped.
type UserModel struct {
	ID       int64  `gorm:"column:user_id;primaryKey"`
	LoginID  string `gorm:"column:login_id;type:varchar(50);uniqueIndex;not null"`
	Nickname string `gorm:"column:nickname;type:varchar(50)"`
	Role     string `gorm:"column:role;type:varchar(20)"`
}

// TableName specifies the table name for UserModel.
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts UserModel to a domain UserProfile.
func (m *UserModel) ToDomain() *UserProfile {
	return &UserProfile{
		UserID:   m.ID,
		LoginID:  m.LoginID,
		Nickname: m.Nickname,
		Role:     m.Role,
	}
}

// PetModel is the GORM model for the pets table. Only the name is read, for
// notification payloads.
type PetModel struct {
	ID   int64  `gorm:"column:pet_id;primaryKey"`
	Name string `gorm:"column:pet_name;type:varchar(50)"`
}

// TableName specifies the table name for PetModel.
func (PetModel) TableName() string {
	return "pets"
}

package user

import (
	"log"
	"os"
	"strings"

	"drivingschool_backend/internals/constants"
	"drivingschool_backend/internals/features/users/auth/model"

	"github.com/bytedance/sonic"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserSeed struct {
	UserName string  `json:"user_name"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone"`
	Password string  `json:"password"`
	Role     string  `json:"role"`
}

// SeedUsersFromJSON inserts users that do not exist yet, matched by email.
func SeedUsersFromJSON(db *gorm.DB, filePath string) {
	log.Println("📥 Reading users from", filePath)

	file, err := os.ReadFile(filePath)
	if err != nil {
		log.Fatalf("❌ cannot read %s: %v", filePath, err)
	}

	var inputs []UserSeed
	if err := sonic.Unmarshal(file, &inputs); err != nil {
		log.Fatalf("❌ cannot decode %s: %v", filePath, err)
	}

	for _, data := range inputs {
		email := strings.ToLower(strings.TrimSpace(data.Email))
		if !constants.IsValidRole(data.Role) {
			log.Printf("⚠️ user '%s' has unknown role %q, skipped", email, data.Role)
			continue
		}

		var n int64
		if err := db.Model(&model.UserModel{}).Where("email = ?", email).Count(&n).Error; err != nil {
			log.Printf("❌ lookup '%s': %v", email, err)
			continue
		}
		if n > 0 {
			log.Printf("ℹ️ user '%s' already exists, skipped", email)
			continue
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(data.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("❌ hash password for '%s': %v", email, err)
			continue
		}

		u := model.UserModel{
			UserName: data.UserName,
			Email:    email,
			Phone:    data.Phone,
			Password: string(hash),
			Role:     data.Role,
			IsActive: true,
		}
		if err := db.Create(&u).Error; err != nil {
			log.Printf("❌ insert user '%s': %v", email, err)
		} else {
			log.Printf("✅ user '%s' (%s) created", email, data.Role)
		}
	}
}

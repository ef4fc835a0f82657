package models

// All returns every model pointer for AutoMigrate, parents before children.
func All() []interface{} {
	return []interface{}{
		&User{},
		&MagicLink{},
		&RefreshToken{},
		&Follow{},
		&Block{},
		&Mute{},
		&Game{},
		&Review{},
		&ReviewLike{},
		&LibraryEntry{},
		&Post{},
		&PostLike{},
		&Comment{},
		&Notification{},
		&Report{},
		&SystemLog{},
	}
}

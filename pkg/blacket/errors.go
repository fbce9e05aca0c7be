package blacket

import "errors"

var (
	// Использование
	ErrNoToken            = errors.New("blacket: token is required")
	ErrNotReady           = errors.New("blacket: manager is not initialized yet")
	ErrAlreadyInitialized = errors.New("blacket: manager is already initialized")

	// Локальные предусловия
	ErrOwnClan         = errors.New("blacket: you can't attack your own clan")
	ErrNotEnoughBlooks = errors.New("blacket: you don't have enough blooks to sell")
	ErrBadQuantity     = errors.New("blacket: quantity must be positive")
	ErrUnknownBlook    = errors.New("blacket: unknown blook")
	ErrUnknownItem     = errors.New("blacket: unknown item")
)

// Причины, которые сервер отдаёт на промах поиска; для менеджеров это
// "не найдено", а не ошибка.
var (
	userNotFoundReasons = []string{"User not found.", "Username must be less than or 16 characters long."}
	clanNotFoundReasons = []string{"Clan does not exist."}
)

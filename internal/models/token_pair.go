package models

import "time"

// TokenPair — пара токенов, выдаваемая при входе, регистрации и обновлении сессии.
//
// Описание:
//   - AccessToken — короткоживущий JWT (kind=access) с ролью пользователя;
//   - RefreshToken — долгоживущий JWT (kind=refresh) без роли; клиент получает
//     его в HttpOnly-cookie и предъявляет для выпуска новой пары;
//   - AccessExpiresAt/RefreshExpiresAt — моменты истечения (UTC).
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

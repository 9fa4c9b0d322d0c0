package dto

// PlaceBetRequest não carrega user_id: o usuário vem do token.
// A odd também não: vale a odd atual da partida no momento da aposta.
type PlaceBetRequest struct {
	MatchID    string `json:"match_id" validate:"required,uuid"`
	BetType    string `json:"bet_type" validate:"required,oneof=home draw away"`
	StakeMinor int64  `json:"stake_minor" validate:"required,gt=0"`
}

// SettleBetRequest é a liquidação manual pelo admin
type SettleBetRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=won lost cancelled"`
}

// SettleMatchRequest informa o resultado da partida
type SettleMatchRequest struct {
	Result string `json:"result" validate:"required,oneof=home draw away cancelled"`
}

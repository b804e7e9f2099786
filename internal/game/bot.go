package game

// Bot is a computer seat: a piece, a difficulty tier and the policy that
// answers for it.
type Bot struct {
	Player     Piece
	Difficulty Difficulty
	policy     *Policy
}

// NewBot builds a bot for player. hardDepth only matters for the Hard tier.
func NewBot(player Piece, difficulty Difficulty, hardDepth int) *Bot {
	return &Bot{
		Player:     player,
		Difficulty: difficulty,
		policy:     NewPolicy(player, hardDepth),
	}
}

// ChooseMove never returns an error for a bot built with a parsed difficulty;
// a board without legal columns yields column 0.
func (b *Bot) ChooseMove(board Board) (Decision, error) {
	return b.policy.Decide(board, b.Difficulty)
}

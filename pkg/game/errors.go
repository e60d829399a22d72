package game

import "errors"

var (
	ErrPiecesNotInHand    = errors.New("pieces not in hand")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrInvalidPieceCount  = errors.New("invalid piece count")
	ErrMissingDeclaration = errors.New("missing declaration")
)

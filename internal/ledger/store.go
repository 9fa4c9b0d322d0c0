package ledger

import (
	"context"

	"github.com/radieske/sports-bet-ledger/internal/shared/db"
)

// Store é o contrato do ledger. Não existe update nem delete.
type Store interface {
	// Atomically roda fn numa única transação que segura o lock da partição do usuário.
	// Entradas e linhas companheiras (apostas, saques) gravadas via Tx entram juntas ou não entram.
	Atomically(ctx context.Context, userID string, fn func(ctx context.Context, tx Tx) error) error

	// EntriesFor devolve as entradas do usuário em ordem de criação, a partir do cursor.
	EntriesFor(ctx context.Context, userID string, after int64, limit int) (Page, error)

	// CurrentBalance é a soma das entradas, lida num único snapshot.
	CurrentBalance(ctx context.Context, userID string) (int64, error)
}

// Tx é a visão do ledger de um usuário dentro de Atomically.
type Tx interface {
	UserID() string

	// Balance recalcula o saldo a partir do ledger, já contando o que foi anexado nesta Tx.
	Balance(ctx context.Context) (int64, error)

	// Append grava as entradas e devolve-as com ID/Seq preenchidos.
	// Falha com apperr.DuplicateReference se a reference_id já existir.
	Append(ctx context.Context, entries ...Entry) ([]Entry, error)

	// HasReference indica se a reference_id já foi registrada.
	HasReference(ctx context.Context, referenceID string) (bool, error)

	// Queryable expõe a transação para linhas companheiras. Nil em stores sem SQL.
	Queryable() db.Queryable
}

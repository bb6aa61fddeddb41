package storage

// Store bundles every SQL-backed store over one connection.
type Store struct {
	*PageStore
	*ThreadStore
	*CommentStore
	Undo *UndoStore
	db   *DB
}

func NewStore(db *DB, undoLimit int) *Store {
	return &Store{
		PageStore:    NewPageStore(db),
		ThreadStore:  NewThreadStore(db),
		CommentStore: NewCommentStore(db),
		Undo:         NewUndoStore(db, undoLimit),
		db:           db,
	}
}

func (s *Store) Close() error {
	return s.db.Close()
}

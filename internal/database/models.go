package database

// Value is the persisted score of one thing within a guild.
type Value struct {
	ID           int64
	GuildID      string
	Thing        string
	CurrentValue int
	CreatedAt    *string
	UpdatedAt    *string
}

// Message is a matched chat message linked to the value it affected.
type Message struct {
	ID        string
	GuildID   string
	ChannelID *string
	AuthorID  *string
	Content   *string
	TimeSent  *string
	Thing     string
	Effect    int
	ValueID   int64
}

// Run records one committed reconciliation.
type Run struct {
	ID         int64
	GuildID    string
	Scanned    int
	Messages   int
	Things     int
	FinishedAt string
}

// ReconcileResult reports what a reconciliation wrote.
type ReconcileResult struct {
	Messages int
	Things   int
}

// Stats contains aggregate statistics for one guild.
type Stats struct {
	Things           int
	Messages         int
	PositiveMessages int
	NegativeMessages int
	Runs             int
	LastRun          *Run
}

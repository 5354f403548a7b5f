package mssql

import (
	"context"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"

	"sparkify/internal/storage"
	"sparkify/internal/storage/sqldb"
)

// Kind is the storage.kind that selects this backend.
const Kind = "mssql"

func init() {
	storage.Register(Kind, NewRepository)
}

// Statements is the SQL Server dialect.
//
// SQL Server has no ON CONFLICT. Dimensions use INSERT ... SELECT ... WHERE
// NOT EXISTS, users use UPDATE followed by a guarded INSERT. Both run inside
// the file transaction, and the pipeline is the only writer.
var Statements = sqldb.Statements{
	CreateTables: []string{
		`IF OBJECT_ID(N'dbo.songs', N'U') IS NULL
CREATE TABLE dbo.songs (
  song_id NVARCHAR(64) NOT NULL PRIMARY KEY,
  title NVARCHAR(512) NOT NULL,
  artist_id NVARCHAR(64) NOT NULL,
  [year] INT NULL,
  duration FLOAT NULL
);`,
		`IF OBJECT_ID(N'dbo.artists', N'U') IS NULL
CREATE TABLE dbo.artists (
  artist_id NVARCHAR(64) NOT NULL PRIMARY KEY,
  name NVARCHAR(512) NOT NULL,
  location NVARCHAR(512) NULL,
  latitude FLOAT NULL,
  longitude FLOAT NULL
);`,
		`IF OBJECT_ID(N'dbo.time', N'U') IS NULL
CREATE TABLE dbo.[time] (
  start_time DATETIME2(3) NOT NULL PRIMARY KEY,
  [hour] INT NOT NULL,
  [day] INT NOT NULL,
  [week] INT NOT NULL,
  [month] INT NOT NULL,
  [year] INT NOT NULL,
  [weekday] INT NOT NULL
);`,
		`IF OBJECT_ID(N'dbo.users', N'U') IS NULL
CREATE TABLE dbo.users (
  user_id NVARCHAR(64) NOT NULL PRIMARY KEY,
  first_name NVARCHAR(256) NULL,
  last_name NVARCHAR(256) NULL,
  gender NVARCHAR(16) NULL,
  level NVARCHAR(16) NOT NULL
);`,
		`IF OBJECT_ID(N'dbo.songplays', N'U') IS NULL
CREATE TABLE dbo.songplays (
  songplay_id BIGINT IDENTITY(1,1) NOT NULL PRIMARY KEY,
  start_time DATETIME2(3) NOT NULL,
  user_id NVARCHAR(64) NOT NULL,
  level NVARCHAR(16) NOT NULL,
  song_id NVARCHAR(64) NULL,
  artist_id NVARCHAR(64) NULL,
  session_id BIGINT NOT NULL,
  location NVARCHAR(512) NULL,
  user_agent NVARCHAR(1024) NULL
);`,
	},

	InsertSong: `INSERT INTO dbo.songs (song_id, title, artist_id, [year], duration)
SELECT @p1, @p2, @p3, @p4, @p5
WHERE NOT EXISTS (SELECT 1 FROM dbo.songs WITH (UPDLOCK, HOLDLOCK) WHERE song_id = @p1);`,

	InsertArtist: `INSERT INTO dbo.artists (artist_id, name, location, latitude, longitude)
SELECT @p1, @p2, @p3, @p4, @p5
WHERE NOT EXISTS (SELECT 1 FROM dbo.artists WITH (UPDLOCK, HOLDLOCK) WHERE artist_id = @p1);`,

	UpsertTime: `INSERT INTO dbo.[time] (start_time, [hour], [day], [week], [month], [year], [weekday])
SELECT @p1, @p2, @p3, @p4, @p5, @p6, @p7
WHERE NOT EXISTS (SELECT 1 FROM dbo.[time] WITH (UPDLOCK, HOLDLOCK) WHERE start_time = @p1);`,

	UpsertUser: `UPDATE dbo.users WITH (UPDLOCK, SERIALIZABLE)
SET first_name = @p2, last_name = @p3, gender = @p4, level = @p5
WHERE user_id = @p1;
IF @@ROWCOUNT = 0
  INSERT INTO dbo.users (user_id, first_name, last_name, gender, level)
  VALUES (@p1, @p2, @p3, @p4, @p5);`,

	InsertSongplay: `INSERT INTO dbo.songplays (start_time, user_id, level, song_id, artist_id, session_id, location, user_agent)
VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8);`,

	LookupSong: `SELECT TOP 1 s.song_id, s.artist_id
FROM dbo.songs s
JOIN dbo.artists a ON a.artist_id = s.artist_id
WHERE s.title = @p1 AND a.name = @p2 AND ABS(s.duration - @p3) <= @p4
ORDER BY s.song_id;`,
}

// NewRepository connects through the "sqlserver" driver registered by
// go-mssqldb. The DSN is a sqlserver:// URL.
func NewRepository(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	repo, err := sqldb.Open(ctx, "sqlserver", cfg.DSN, Statements, sqldb.Options{MaxOpenConns: 4})
	if err != nil {
		return nil, fmt.Errorf("open mssql: %w", err)
	}
	return repo, nil
}

package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- TRIP JOB TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS trip_job SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS task_id ON trip_job TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON trip_job TYPE string;
    DEFINE FIELD IF NOT EXISTS params ON trip_job TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS result ON trip_job TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS error ON trip_job TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created ON trip_job TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS completed ON trip_job TYPE option<datetime>;

    DEFINE INDEX IF NOT EXISTS trip_job_task_id ON trip_job FIELDS task_id UNIQUE;
    DEFINE INDEX IF NOT EXISTS trip_job_status ON trip_job FIELDS status;

    -- ==========================================================================
    -- SESSION TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS trip_session SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS session_id ON trip_session TYPE string;
    DEFINE FIELD IF NOT EXISTS entities ON trip_session TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS last_plan ON trip_session TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created ON trip_session TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS last_activity ON trip_session TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS trip_session_id ON trip_session FIELDS session_id UNIQUE;
`

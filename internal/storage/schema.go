package storage

const schema = `
-- The 'documents' table is a small key-value store. Each row holds one
-- complete JSON state document.
CREATE TABLE IF NOT EXISTS documents (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL,
    updated_at DATETIME NOT NULL
);
`

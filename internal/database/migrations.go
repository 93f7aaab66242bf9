package database

const schema = `
CREATE TABLE IF NOT EXISTS orders (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    number TEXT NOT NULL UNIQUE,
    customer_email TEXT,
    status TEXT NOT NULL DEFAULT 'new',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS threads (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conv_key TEXT NOT NULL UNIQUE,
    subject TEXT,
    status TEXT NOT NULL DEFAULT 'open',
    has_unread BOOLEAN DEFAULT false,
    has_attachments BOOLEAN DEFAULT false,
    order_id INTEGER REFERENCES orders(id),
    last_activity_at DATETIME,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    thread_id INTEGER NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
    message_id TEXT NOT NULL UNIQUE,
    direction TEXT NOT NULL DEFAULT 'in',
    from_addr TEXT NOT NULL,
    to_addr TEXT,
    subject TEXT,
    body TEXT,
    body_is_html BOOLEAN DEFAULT false,
    is_placeholder BOOLEAN DEFAULT false,
    is_read BOOLEAN DEFAULT false,
    uid INTEGER DEFAULT 0,
    sent_at DATETIME,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS attachments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    message_id INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
    filename TEXT NOT NULL,
    storage_url TEXT NOT NULL,
    content_type TEXT,
    size INTEGER DEFAULT 0,
    is_inline BOOLEAN DEFAULT false,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_threads_order ON threads(order_id);
CREATE INDEX IF NOT EXISTS idx_threads_activity ON threads(last_activity_at);
CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id);
CREATE INDEX IF NOT EXISTS idx_attachments_message ON attachments(message_id);
CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_email);
`

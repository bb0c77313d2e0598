package model

import "time"

// Client represents a person who books sessions.  Clients are created by
// the surrounding application; the booking engine only reads them to
// resolve identity and contact details.
//
// Fields:
//  ID        – primary key identifier.
//  Email     – unique email address, used for notifications and invites.
//  Name      – display name.
//  CreatedAt – timestamp of creation.
type Client struct {
    ID        uint64    // clients.id
    Email     string    // clients.email
    Name      string    // clients.name
    CreatedAt time.Time // clients.created_at
}

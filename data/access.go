package data

// AccessMode represents the open flags for read and write channels.
// Modes combine using bitwise OR.
type AccessMode int

const (
	AccessModeRead      AccessMode = 1 << iota // open for reading
	AccessModeWrite                            // open for writing
	AccessModeAppend                           // append to object (unsupported by the store)
	AccessModeCreate                           // create if not exists
	AccessModeCreateNew                        // exclusive creation, fail if exists
	AccessModeTruncate                         // truncate on open
	AccessModeSync                             // synchronous I/O (unsupported by the store)
	AccessModeDSync                            // synchronous data I/O (unsupported by the store)
)

// IsRead checks if the mode requests read access.
func (m AccessMode) IsRead() bool {
	return m&AccessModeRead != 0
}

// IsWrite checks if the mode requests write access.
func (m AccessMode) IsWrite() bool {
	return m&AccessModeWrite != 0
}

// HasAppend checks if the mode includes append.
func (m AccessMode) HasAppend() bool {
	return m&AccessModeAppend != 0
}

// HasCreate checks if the mode includes create.
func (m AccessMode) HasCreate() bool {
	return m&AccessModeCreate != 0
}

// HasCreateNew checks if the mode includes exclusive creation.
func (m AccessMode) HasCreateNew() bool {
	return m&AccessModeCreateNew != 0
}

// HasTruncate checks if the mode includes truncate.
func (m AccessMode) HasTruncate() bool {
	return m&AccessModeTruncate != 0
}

// HasSync checks if the mode includes any synchronous-flush flag.
func (m AccessMode) HasSync() bool {
	return m&(AccessModeSync|AccessModeDSync) != 0
}

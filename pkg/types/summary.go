package types

// UserResult records what a run did for one user.
type UserResult struct {
	Username    string `json:"username"`
	Destination string `json:"destination"`
	DirsCreated int    `json:"dirs_created"`
	FilesCopied int    `json:"files_copied"`
	BytesCopied int64  `json:"bytes_copied"`
	Error       string `json:"error,omitempty"`

	Err error `json:"-"`
}

// Failed reports whether provisioning this user stopped on an error.
func (r UserResult) Failed() bool {
	return r.Err != nil
}

// ProvisionSummary is the result of a provisioning run. Users appear in
// the order they were processed.
type ProvisionSummary struct {
	BaseOutputDir string       `json:"base_output_dir"`
	TemplateRoot  string       `json:"template_root"`
	BaseCreated   bool         `json:"base_created"`
	DryRun        bool         `json:"dry_run"`
	Users         []UserResult `json:"users"`
}

// TotalFiles is the number of files copied across all users.
func (s *ProvisionSummary) TotalFiles() int {
	total := 0
	for _, u := range s.Users {
		total += u.FilesCopied
	}
	return total
}

// TotalBytes is the number of bytes copied across all users.
func (s *ProvisionSummary) TotalBytes() int64 {
	var total int64
	for _, u := range s.Users {
		total += u.BytesCopied
	}
	return total
}

// FailedUsers returns the results that carry an error.
func (s *ProvisionSummary) FailedUsers() []UserResult {
	var failed []UserResult
	for _, u := range s.Users {
		if u.Failed() {
			failed = append(failed, u)
		}
	}
	return failed
}

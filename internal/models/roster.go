package models

// GuardianLink joins a guardian to one of their students. A student may have
// several guardians and a guardian several students.
type GuardianLink struct {
	StudentID       string `db:"student_id" json:"student_id"`
	StudentName     string `db:"student_name" json:"student_name"`
	GuardianID      string `db:"guardian_id" json:"guardian_id"`
	GuardianName    string `db:"guardian_name" json:"guardian_name"`
	GuardianPushTag string `db:"guardian_push_tag" json:"guardian_push_tag"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

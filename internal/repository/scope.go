package repository

import "gorm.io/gorm"

// StudentCourse identifies one analytics target. A nil course means the student as a whole.
type StudentCourse struct {
	StudentID uint  `json:"student_id"`
	CourseID  *uint `json:"course_id,omitempty"`
}

// CourseScope narrows a per-student query. The zero value spans every course of the student;
// InCourse pins it to one course, where a nil course selects the student-wide rows.
type CourseScope struct {
	CourseID *uint
	Exact    bool
}

// AllCourses spans every course of the student.
func AllCourses() CourseScope {
	return CourseScope{}
}

// InCourse pins a query to courseID, or to the student-wide rows when it is nil.
func InCourse(courseID *uint) CourseScope {
	return CourseScope{CourseID: courseID, Exact: true}
}

func (s CourseScope) apply(query *gorm.DB) *gorm.DB {
	if !s.Exact {
		return query
	}
	return scopeCourse(query, s.CourseID)
}

func scopeCourse(query *gorm.DB, courseID *uint) *gorm.DB {
	if courseID == nil {
		return query.Where("course_id IS NULL")
	}
	return query.Where("course_id = ?", *courseID)
}

func paginate(query *gorm.DB, page, pageSize int) *gorm.DB {
	if pageSize <= 0 {
		return query
	}
	if page <= 0 {
		page = 1
	}
	return query.Limit(pageSize).Offset((page - 1) * pageSize)
}

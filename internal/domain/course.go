package domain

import "errors"

// Course is a catalog entry as stored in the "courses" collection. Field
// names match what the mobile client reads back from the store.
type Course struct {
	Title       string `json:"course_title" firestore:"course_title"`
	Link        string `json:"course_link" firestore:"course_link"`
	Description string `json:"course_description" firestore:"course_description"`
	Image       string `json:"course_image" firestore:"course_image"`
}

// CoursesCollection is the store collection (or table) holding courses.
const CoursesCollection = "courses"

// ErrCourseNotFound is returned by stores when no course has the given title.
var ErrCourseNotFound = errors.New("course not found")

// ErrInvalidTitle is returned by stores that cannot use a title as a key.
var ErrInvalidTitle = errors.New("course title is not a valid store key")

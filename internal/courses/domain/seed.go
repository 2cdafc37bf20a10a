package domain

// DefaultCourses is the catalogue a fresh deployment starts with.
func DefaultCourses() []Course {
	return []Course{
		{
			Code: "CS101", Name: "Introduction to Data Science",
			Instructor: "Dr. Anya Sharma", Semester: "Fall 2024",
			Description:  "Learn the basics of data science",
			LocationName: "Building A, Room 101",
			Latitude:     40.7128, Longitude: -74.006, Students: 62,
		},
		{
			Code: "CS201", Name: "Advanced Algorithms",
			Instructor: "Prof. Ben Carter", Semester: "Spring 2024",
			Description:  "Deep dive into algorithm design",
			LocationName: "Building B, Room 205",
			Latitude:     40.758, Longitude: -73.9855, Students: 45,
		},
		{
			Code: "CS301", Name: "Mobile Application Development",
			Instructor: "Dr. Chloe Davis", Semester: "Fall 2024",
			Description:  "Build cross-platform mobile apps",
			LocationName: "Building C, Lab 301",
			Latitude:     40.7614, Longitude: -73.9776, Students: 54,
		},
		{
			Code: "CS401", Name: "Human-Computer Interaction",
			Instructor: "Dr. Ian Evans", Semester: "Spring 2024",
			Description:  "Study user interface design",
			LocationName: "Building A, Room 305",
			Latitude:     40.7489, Longitude: -73.968, Students: 38,
		},
		{
			Code: "CS501", Name: "Machine Learning Foundations",
			Instructor: "Prof. Freya Garcia", Semester: "Fall 2024",
			Description:  "Introduction to ML algorithms",
			LocationName: "Building D, Room 501",
			Latitude:     40.7505, Longitude: -73.9934, Students: 71,
		},
	}
}

package models

// DateLayout is the calendar-day format used for captured_date comparisons.
const DateLayout = "2006-01-02"

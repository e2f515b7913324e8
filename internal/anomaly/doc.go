// Package anomaly identifies at-risk students.
//
// The pipeline keeps students present in all four quarters, fills missing
// Submitted, Assessments and % Attendance values with an iterative linear
// imputer, derives the submission rate, standardises attendance and rate,
// averages each student across quarters and fits an isolation forest on the
// two scaled features. A student is at risk only when the forest marks them
// anomalous and both their raw attendance and submission rate are below the
// cohort mean, so strong outliers are never reported.
//
// All randomness comes from a seeded PCG source; identical input yields an
// identical result.
package anomaly

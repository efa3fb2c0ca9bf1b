package queue

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, document_ref, document_format, title, settings_json, stage, revision, " +
	"extract_attempts, generate_attempts, optimize_attempts, " +
	"error_kind, error_stage, error_message, artifact_ref, created_at, updated_at, " +
	"extract_started_at, extract_completed_at, generate_started_at, generate_completed_at, " +
	"optimize_started_at, optimize_completed_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id               int64
		documentRef      string
		documentFormat   string
		title            sql.NullString
		settings         sql.NullString
		stageStr         string
		revision         int64
		extractAttempts  int
		generateAttempts int
		optimizeAttempts int
		errorKind        sql.NullString
		errorStage       sql.NullString
		errorMessage     sql.NullString
		artifactRef      sql.NullString
		createdRaw       string
		updatedRaw       string
		stageTimes       [6]sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&documentRef,
		&documentFormat,
		&title,
		&settings,
		&stageStr,
		&revision,
		&extractAttempts,
		&generateAttempts,
		&optimizeAttempts,
		&errorKind,
		&errorStage,
		&errorMessage,
		&artifactRef,
		&createdRaw,
		&updatedRaw,
		&stageTimes[0],
		&stageTimes[1],
		&stageTimes[2],
		&stageTimes[3],
		&stageTimes[4],
		&stageTimes[5],
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:               id,
		DocumentRef:      documentRef,
		DocumentFormat:   documentFormat,
		Title:            title.String,
		SettingsJSON:     settings.String,
		Stage:            Stage(stageStr),
		Revision:         revision,
		ExtractAttempts:  extractAttempts,
		GenerateAttempts: generateAttempts,
		OptimizeAttempts: optimizeAttempts,
		ErrorKind:        errorKind.String,
		ErrorStage:       Stage(errorStage.String),
		ErrorMessage:     errorMessage.String,
		ArtifactRef:      artifactRef.String,
	}

	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	dests := [6]**time.Time{
		&job.ExtractStartedAt, &job.ExtractCompletedAt,
		&job.GenerateStartedAt, &job.GenerateCompletedAt,
		&job.OptimizeStartedAt, &job.OptimizeCompletedAt,
	}
	for i, raw := range stageTimes {
		if !raw.Valid {
			continue
		}
		if ts, err := parseTimeString(raw.String); err == nil {
			*dests[i] = &ts
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

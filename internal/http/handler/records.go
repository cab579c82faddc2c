package handler

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"portalapi/internal/model"
	"portalapi/internal/service"
)

// label names a collection's records in response messages.
var label = map[model.Collection]string{
	model.Users:       "user",
	model.Assignments: "assignment",
	model.Schedules:   "schedule",
	model.Exams:       "exam",
	model.Questions:   "question",
	model.Courses:     "course",
	model.Forum:       "post",
	model.Calendar:    "event",
}

// createdStatus is the success status of a create per collection; the
// forum and calendar routes have always answered 201.
func createdStatus(c model.Collection) int {
	if c == model.Forum || c == model.Calendar {
		return fiber.StatusCreated
	}
	return fiber.StatusOK
}

func invalidID(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id")
}

func invalidBody(c *fiber.Ctx, err error) error {
	if errors.Is(err, errInvalidBody) {
		return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}
	return respondError(c, err)
}

// ListRecords returns every record of the collection in insertion order.
func ListRecords(svc service.RecordService, col model.Collection) fiber.Handler {
	return func(c *fiber.Ctx) error {
		recs, err := svc.List(c.UserContext(), col)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(recs)
	}
}

// GetRecord returns one record by id.
func GetRecord(svc service.RecordService, col model.Collection) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c, "id")
		if !ok {
			return invalidID(c)
		}
		rec, err := svc.Get(c.UserContext(), col, id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(rec)
	}
}

// CreateRecord creates a record from the body. For collections with an
// attachment, a multipart file in fileField is stored alongside.
func CreateRecord(svc service.RecordService, col model.Collection, fileField string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fields, err := parseFields(c)
		if err != nil {
			return invalidBody(c, err)
		}
		upload, done, err := formUpload(c, fileField)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer done()

		rec, err := svc.Create(c.UserContext(), col, fields, upload)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(createdStatus(col)).JSON(rec)
	}
}

// UpdateRecord merges the body into an existing record.
func UpdateRecord(svc service.RecordService, col model.Collection, fileField string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c, "id")
		if !ok {
			return invalidID(c)
		}
		fields, err := parseFields(c)
		if err != nil {
			return invalidBody(c, err)
		}
		upload, done, err := formUpload(c, fileField)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer done()

		rec, err := svc.Update(c.UserContext(), col, id, fields, upload)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(rec)
	}
}

// DeleteRecord removes a record; exams take their questions with them.
func DeleteRecord(svc service.RecordService, col model.Collection) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c, "id")
		if !ok {
			return invalidID(c)
		}
		if err := svc.Delete(c.UserContext(), col, id); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": fmt.Sprintf("%s deleted", label[col])})
	}
}

// UploadAttachment replaces a record's file with the one in fileField.
func UploadAttachment(svc service.RecordService, col model.Collection, fileField string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c, "id")
		if !ok {
			return invalidID(c)
		}
		upload, done, err := formUpload(c, fileField)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer done()
		if upload == nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		rec, err := svc.Attach(c.UserContext(), col, id, upload)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(rec)
	}
}

// DeleteAttachment removes a record's file and nulls the reference.
func DeleteAttachment(svc service.RecordService, col model.Collection) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c, "id")
		if !ok {
			return invalidID(c)
		}
		rec, err := svc.Detach(c.UserContext(), col, id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(rec)
	}
}

// UpdateProfile merges firstName, lastName and email into a user.
func UpdateProfile(svc service.RecordService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c, "id")
		if !ok {
			return invalidID(c)
		}
		fields, err := parseFields(c)
		if err != nil {
			return invalidBody(c, err)
		}
		user, err := svc.Update(c.UserContext(), model.Users, id, fields, nil)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "profile updated", "user": user})
	}
}

// ExamQuestions lists the questions of an exam.
func ExamQuestions(svc service.RecordService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c, "id")
		if !ok {
			return invalidID(c)
		}
		qs, err := svc.QuestionsForExam(c.UserContext(), id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(qs)
	}
}

// EventsByDate lists calendar events whose date equals the path segment.
func EventsByDate(svc service.RecordService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		events, err := svc.EventsOn(c.UserContext(), c.Params("date"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(events)
	}
}

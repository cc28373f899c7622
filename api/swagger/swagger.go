package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Enrollment Finance API",
        "description": "Kindergarten enrollment-to-finance linkage service",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "EnrollmentPlans", "description": "Admission plans and class quotas"},
        {"name": "FeePackages", "description": "Versioned fee package templates"},
        {"name": "PaymentBills", "description": "Bill issuance and payment confirmation"},
        {"name": "Refunds", "description": "Refund application workflow"},
        {"name": "EnrollmentFinance", "description": "Legacy enrollment-finance endpoints"}
    ],
    "paths": {
        "/enrollment-plans": {
            "get": {
                "tags": ["EnrollmentPlans"],
                "summary": "List enrollment plans",
                "parameters": [
                    {"name": "academicYear", "in": "query", "type": "string"},
                    {"name": "term", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["EnrollmentPlans"],
                "summary": "Create enrollment plan",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreatePlanRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollment-plans/{id}": {
            "get": {
                "tags": ["EnrollmentPlans"],
                "summary": "Get plan detail with quotas",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/finance/fee-package-templates": {
            "get": {
                "tags": ["FeePackages"],
                "summary": "List fee package templates",
                "parameters": [
                    {"name": "targetGrade", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["FeePackages"],
                "summary": "Create fee package template",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateFeePackageRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/finance/payment-bills": {
            "get": {
                "tags": ["PaymentBills"],
                "summary": "List payment bills",
                "parameters": [
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "enrollmentId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["PaymentBills"],
                "summary": "Generate a payment bill",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateBillRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/finance/payment-bills/{id}/confirm": {
            "post": {
                "tags": ["PaymentBills"],
                "summary": "Confirm payment for a bill",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ConfirmPaymentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Bill already paid"},
                    "422": {"description": "Amount mismatch"}
                }
            }
        },
        "/finance/refund-applications": {
            "get": {
                "tags": ["Refunds"],
                "summary": "List refund applications",
                "parameters": [
                    {"name": "billId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Refunds"],
                "summary": "Open a refund application",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApplyRefundRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollment-finance/linkages": {
            "get": {
                "tags": ["EnrollmentFinance"],
                "summary": "List enrollment-finance linkages",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "className", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/LegacyEnvelope"}}
                }
            }
        },
        "/enrollment-finance/statistics": {
            "get": {
                "tags": ["EnrollmentFinance"],
                "summary": "Dashboard statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/LegacyEnvelope"}}
                }
            }
        },
        "/enrollment-finance/enrollment-approved/{id}": {
            "post": {
                "tags": ["EnrollmentFinance"],
                "summary": "Approval hook: issue a bill for an approved enrollment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/LegacyEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreatePlanRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "name": {"type": "string"},
                "academicYear": {"type": "string"},
                "term": {"type": "string"},
                "startDate": {"type": "string", "format": "date-time"},
                "endDate": {"type": "string", "format": "date-time"},
                "targetCount": {"type": "integer"},
                "ageRange": {"type": "string"}
            },
            "required": ["code", "name", "academicYear", "term", "startDate", "endDate", "targetCount"]
        },
        "CreateFeePackageRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "name": {"type": "string"},
                "targetGrade": {"type": "string"},
                "items": {"type": "array", "items": {"type": "object"}},
                "discountRate": {"type": "number"}
            },
            "required": ["code", "name", "items"]
        },
        "GenerateBillRequest": {
            "type": "object",
            "properties": {
                "enrollmentId": {"type": "string"},
                "templateId": {"type": "string"},
                "discountAmount": {"type": "number"},
                "dueDate": {"type": "string", "format": "date-time"}
            },
            "required": ["enrollmentId", "templateId"]
        },
        "ConfirmPaymentRequest": {
            "type": "object",
            "properties": {
                "amount": {"type": "number"},
                "paymentMethod": {"type": "string"},
                "receiptNo": {"type": "string"}
            },
            "required": ["amount", "paymentMethod"]
        },
        "ApplyRefundRequest": {
            "type": "object",
            "properties": {
                "billId": {"type": "string"},
                "refundAmount": {"type": "number"},
                "reason": {"type": "string"}
            },
            "required": ["billId", "refundAmount", "reason"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        },
        "LegacyEnvelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {"type": "object"},
                "message": {"type": "string"},
                "error": {"type": "string"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}

// Package docs registers the OpenAPI document served at /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/health": {"get": {"tags": ["system"], "summary": "Liveness probe", "responses": {"200": {"description": "OK"}}}},
        "/plans": {"get": {"tags": ["plans"], "summary": "List investment plans", "responses": {"200": {"description": "OK"}}}},
        "/auth/otp": {"post": {"tags": ["auth"], "summary": "Issue an OTP and security code for a phone",
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/OTPRequest"}}],
            "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid phone"}}}},
        "/auth/register": {"post": {"tags": ["auth"], "summary": "Register with OTP, security code and optional referral code",
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}],
            "responses": {"201": {"description": "Created"}, "401": {"description": "Bad OTP"}, "409": {"description": "Already registered"}}}},
        "/auth/login": {"post": {"tags": ["auth"], "summary": "Log in with phone and security code",
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}],
            "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}},
        "/me": {"get": {"tags": ["account"], "security": [{"BearerAuth": []}], "summary": "Profile, balance and open positions", "responses": {"200": {"description": "OK"}}}},
        "/investments": {"get": {"tags": ["account"], "security": [{"BearerAuth": []}], "summary": "List own investments", "responses": {"200": {"description": "OK"}}}},
        "/transactions": {"get": {"tags": ["account"], "security": [{"BearerAuth": []}], "summary": "Recent transactions",
            "parameters": [{"in": "query", "name": "limit", "type": "integer"}], "responses": {"200": {"description": "OK"}}}},
        "/payments/investment": {"post": {"tags": ["payments"], "security": [{"BearerAuth": []}], "summary": "Start an investment payment",
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/InvestmentPaymentRequest"}}],
            "responses": {"201": {"description": "Created"}, "400": {"description": "Amount outside plan range"}, "404": {"description": "Unknown plan"}}}},
        "/payments/withdrawal": {"post": {"tags": ["payments"], "security": [{"BearerAuth": []}], "summary": "Request a withdrawal and start its payment",
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/WithdrawalPaymentRequest"}}],
            "responses": {"201": {"description": "Created"}, "422": {"description": "Below minimum or insufficient funds"}}}},
        "/payments/{id}": {
            "get": {"tags": ["payments"], "security": [{"BearerAuth": []}], "summary": "Payment status and progress",
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}},
            "delete": {"tags": ["payments"], "security": [{"BearerAuth": []}], "summary": "Stop waiting for a payment",
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "409": {"description": "Already completed"}}}
        },
        "/admin/login": {"post": {"tags": ["admin"], "summary": "Admin password login",
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/AdminLoginRequest"}}],
            "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}},
        "/admin/stats": {"get": {"tags": ["admin"], "security": [{"BearerAuth": []}], "summary": "Platform statistics", "responses": {"200": {"description": "OK"}}}},
        "/admin/users": {"get": {"tags": ["admin"], "security": [{"BearerAuth": []}], "summary": "List users", "responses": {"200": {"description": "OK"}}}},
        "/admin/users/{id}": {
            "get": {"tags": ["admin"], "security": [{"BearerAuth": []}], "summary": "User detail",
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "integer"}], "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["admin"], "security": [{"BearerAuth": []}], "summary": "Delete user and all their data",
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "integer"}], "responses": {"204": {"description": "No Content"}}}
        },
        "/admin/users/{id}/wallet": {"post": {"tags": ["admin"], "security": [{"BearerAuth": []}], "summary": "Credit or debit a wallet",
            "parameters": [{"in": "path", "name": "id", "required": true, "type": "integer"},
                {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/WalletAdjustmentRequest"}}],
            "responses": {"200": {"description": "OK"}}}},
        "/admin/withdrawals/{id}/cancel": {"post": {"tags": ["admin"], "security": [{"BearerAuth": []}], "summary": "Cancel a pending withdrawal and release its reservation",
            "parameters": [{"in": "path", "name": "id", "required": true, "type": "integer"}],
            "responses": {"200": {"description": "OK"}, "404": {"description": "No pending withdrawal"}}}},
        "/admin/investments": {"get": {"tags": ["admin"], "security": [{"BearerAuth": []}], "summary": "All investments", "responses": {"200": {"description": "OK"}}}},
        "/admin/transactions": {"get": {"tags": ["admin"], "security": [{"BearerAuth": []}], "summary": "Recent transactions across users", "responses": {"200": {"description": "OK"}}}},
        "/admin/returns/run": {"post": {"tags": ["admin"], "security": [{"BearerAuth": []}], "summary": "Run daily accrual now", "responses": {"200": {"description": "OK"}}}},
        "/admin/export/transactions": {"get": {"tags": ["admin"], "security": [{"BearerAuth": []}], "summary": "Export transactions as CSV",
            "parameters": [{"in": "query", "name": "upload", "type": "boolean"}], "responses": {"200": {"description": "OK"}}}},
        "/admin/system": {"get": {"tags": ["admin"], "security": [{"BearerAuth": []}], "summary": "Runtime information", "responses": {"200": {"description": "OK"}}}}
    },
    "definitions": {
        "OTPRequest": {"type": "object", "properties": {"phone": {"type": "string", "example": "9999999999"}}},
        "RegisterRequest": {"type": "object", "properties": {
            "phone": {"type": "string"}, "otp": {"type": "string"}, "security_code": {"type": "string"}, "referral_code": {"type": "string"}}},
        "LoginRequest": {"type": "object", "properties": {"phone": {"type": "string"}, "security_code": {"type": "string"}}},
        "AdminLoginRequest": {"type": "object", "properties": {"password": {"type": "string"}}},
        "InvestmentPaymentRequest": {"type": "object", "properties": {
            "plan_id": {"type": "integer", "example": 1}, "amount": {"type": "number", "example": 1000},
            "method": {"type": "string", "enum": ["phonepe", "googlepay", "upi"]}}},
        "BankDetails": {"type": "object", "properties": {
            "account_holder": {"type": "string"}, "account_number": {"type": "string"}, "ifsc_code": {"type": "string"}}},
        "WithdrawalPaymentRequest": {"type": "object", "properties": {
            "amount": {"type": "number", "example": 500}, "method": {"type": "string"},
            "bank_details": {"$ref": "#/definitions/BankDetails"}}},
        "WalletAdjustmentRequest": {"type": "object", "properties": {"amount": {"type": "number"}, "reason": {"type": "string"}}}
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Investment Wallet API",
	Description:      "Fixed-return investment plans, wallet ledger and admin console.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

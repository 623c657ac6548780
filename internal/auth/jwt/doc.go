// Package jwt authenticates requests carrying an HS256-signed JSON Web
// Token, from the Authorization header or the token query parameter.
// Claims are mapped onto the principal: sub, name, and the roles,
// permissions, and scope claims.
package jwt

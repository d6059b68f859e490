package ast

// TypeEnv resolves names that are not bound inside the expression itself.
type TypeEnv interface {
	VarType(name string) (Type, bool)
	FuncResult(name string) (Type, bool)
}

// ResultType computes the static type of id. Bindings introduced by var and
// for inside the expression shadow env. Unknown names are treated as scalars;
// the code generator reports them.
func (e *Exprs) ResultType(id ExprID, env TypeEnv) Type {
	r := typeResolver{exprs: e, env: env}
	return r.typeOf(id)
}

type typeResolver struct {
	exprs  *Exprs
	env    TypeEnv
	scopes []map[string]Type
}

func (r *typeResolver) lookup(name string) Type {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if t, ok := r.scopes[i][name]; ok {
			return t
		}
	}
	if r.env != nil {
		if t, ok := r.env.VarType(name); ok {
			return t
		}
	}
	return TypeScalar
}

func (r *typeResolver) typeOf(id ExprID) Type {
	expr := r.exprs.Get(id)
	if expr == nil {
		return TypeScalar
	}
	switch expr.Kind {
	case ExprNumber, ExprFor:
		return TypeScalar
	case ExprVariable:
		v, _ := r.exprs.Variable(id)
		return r.lookup(v.Name)
	case ExprUnary:
		u, _ := r.exprs.Unary(id)
		return r.typeOf(u.Operand)
	case ExprBinary:
		b, _ := r.exprs.Binary(id)
		if b.Op == '<' || b.Op == '>' {
			return TypeScalar
		}
		return r.typeOf(b.Left)
	case ExprCall:
		c, _ := r.exprs.Call(id)
		if r.env != nil {
			if t, ok := r.env.FuncResult(c.Callee); ok {
				return t
			}
		}
		return TypeScalar
	case ExprMap:
		return TypeVector
	case ExprIf:
		i, _ := r.exprs.If(id)
		return r.typeOf(i.Then)
	case ExprVar:
		v, _ := r.exprs.Var(id)
		scope := make(map[string]Type, len(v.Bindings))
		r.scopes = append(r.scopes, scope)
		for _, b := range v.Bindings {
			if b.IsVector() {
				scope[b.Name] = TypeVector
			} else {
				scope[b.Name] = TypeScalar
			}
		}
		t := r.typeOf(v.Body)
		r.scopes = r.scopes[:len(r.scopes)-1]
		return t
	}
	return TypeScalar
}
